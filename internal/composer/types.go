// Package composer builds the Kubernetes manifest set for a load-balanced,
// autoscaled workload from a validated set of deployment parameters.
//
// Composition is a pure function of its input:
//
//	manifests, err := composer.Compose(params)
//
// The same parameters always yield the same ordered manifests, which keeps
// diff-based deployment meaningful. Cross references between manifests are
// carried as typed references (WorkloadRef, ServiceRef) rather than strings
// assembled at call sites.
package composer

// Topology selects how many containers the workload runs.
type Topology string

const (
	// TopologySingle runs one application container.
	TopologySingle Topology = "single"
	// TopologyMulti runs a front container and an application container
	// sharing a volume.
	TopologyMulti Topology = "multi"
)

// ExposureType is the network reachability of a ServiceExposure.
type ExposureType string

const (
	// ExposureClusterIP is reachable only inside the cluster.
	ExposureClusterIP ExposureType = "ClusterIP"
	// ExposureNodePort is reachable on every node.
	ExposureNodePort ExposureType = "NodePort"
)

// PathMatch is the ingress path-match mode.
type PathMatch string

const (
	PathMatchExact  PathMatch = "Exact"
	PathMatchPrefix PathMatch = "Prefix"
)

// IdentityKind distinguishes IAM users from IAM roles.
type IdentityKind string

const (
	IdentityUser IdentityKind = "user"
	IdentityRole IdentityKind = "role"
)

// Names holds the resource names assigned to the composed manifests.
type Names struct {
	Deployment string
	Service    string
	Ingress    string
}

// ScalingBounds are the autoscaler inputs.
type ScalingBounds struct {
	MinReplicas          int32
	MaxReplicas          int32
	TargetCPUUtilization int32
}

// DeploymentParameters is the full external input to composition.
// Empty strings and nil slices mean "absent".
type DeploymentParameters struct {
	// Account and Region are used for ECR image references and IAM ARNs.
	Account string
	Region  string

	// Namespace is required and applies to every emitted manifest.
	Namespace string

	// Certificate is the ACM certificate identifier; its presence selects
	// the TLS ingress branch.
	Certificate string

	// AlbAccessLogsBucketName enables ALB access logging to the bucket.
	AlbAccessLogsBucketName string
	// AlbAccessLogsPrefix is an optional key prefix inside the bucket.
	AlbAccessLogsPrefix string

	// HostedZoneID, HostedZoneName and RecordName drive the DNS binding.
	HostedZoneID   string
	HostedZoneName string
	RecordName     string

	// AdminUsers and AdminRoles each become one cluster-admin binding.
	AdminUsers []string
	AdminRoles []string

	Topology Topology
	// Image overrides the application image of the single-container topology.
	Image string

	Names   Names
	Scaling ScalingBounds

	// PublishedPort is the service port the ingress routes to.
	PublishedPort int32
	// ExposureType of the service; the ALB in ip mode accepts either.
	ExposureType ExposureType
	// IngressClassName selects the ingress controller.
	IngressClassName string
}

// WorkloadRef names a Deployment.
type WorkloadRef struct {
	Name string
}

// ServiceRef names a Service.
type ServiceRef struct {
	Name string
}

// LoadBalancerName is the external load balancer name derived from the service.
func (r ServiceRef) LoadBalancerName() string {
	return r.Name + "-alb"
}

// EnvValue is one named environment value.
type EnvValue struct {
	Name  string
	Value string
}

// LifecycleHook is a postStart command that relocates files into TargetPath.
type LifecycleHook struct {
	Command    []string
	TargetPath string
}

// WorkloadSpec describes one container of the workload. A set RunAsUser
// enables the non-root security context for the container.
type WorkloadSpec struct {
	Name             string
	Image            string
	Port             int32
	CPURequestMillis int64
	CPULimitMillis   int64
	RunAsUser        *int64
	PostStart        *LifecycleHook
	Env              []EnvValue
	// VolumeMount is the mount path of the workload's shared volume.
	VolumeMount string
}

// Workload is a deployable container group.
type Workload struct {
	Ref       WorkloadRef
	Namespace string
	// Containers are ordered; the first is the front container whose port is exposed.
	Containers []WorkloadSpec
	// SharedVolume is the name of the emptyDir shared by containers; empty when none.
	SharedVolume string
	Labels       map[string]string
}

// NonRoot reports whether every container runs as an explicit user.
func (w *Workload) NonRoot() bool {
	for _, c := range w.Containers {
		if c.RunAsUser == nil {
			return false
		}
	}
	return len(w.Containers) > 0
}

// FrontPort returns the container port of the front container.
func (w *Workload) FrontPort() int32 {
	if len(w.Containers) == 0 {
		return 0
	}
	return w.Containers[0].Port
}

// ScalingPolicy bounds the replica count of a workload.
type ScalingPolicy struct {
	Name                 string
	Namespace            string
	Target               WorkloadRef
	MinReplicas          int32
	MaxReplicas          int32
	TargetCPUUtilization int32
}

// ServiceExposure is the stable network identity of a workload.
type ServiceExposure struct {
	Ref        ServiceRef
	Namespace  string
	Target     WorkloadRef
	Selector   map[string]string
	TargetPort int32
	Port       int32
	Type       ExposureType
}

// TLSListener configures the HTTPS listener of the load balancer.
type TLSListener struct {
	CertificateARN string
	SSLPolicy      string
}

// AccessLogs configures load balancer access logging.
type AccessLogs struct {
	Bucket string
	Prefix string
}

// IngressRoute is the external HTTP(S) entry point for a service.
type IngressRoute struct {
	Name        string
	Namespace   string
	Service     ServiceRef
	ServicePort int32
	Path        string
	PathMatch   PathMatch
	ClassName   string
	// TLS is nil for an HTTP-only listener.
	TLS *TLSListener
	// AccessLogs is nil when access logging is disabled.
	AccessLogs *AccessLogs
}

// DNSBinding aliases a record name to the ingress address.
type DNSBinding struct {
	HostedZoneID string
	// RecordName is fully qualified with a trailing dot.
	RecordName string
	Target     string
	Type       string
	TTL        int64
}

// AdminBinding grants an IAM identity unrestricted cluster administrator scope.
type AdminBinding struct {
	Kind      IdentityKind
	Name      string
	ARN       string
	Groups    []string
	PolicyARN string
	Scope     string
}
