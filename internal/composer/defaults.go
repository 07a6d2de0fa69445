package composer

import "fmt"

const (
	DefaultDeploymentName = "my-cdk8s-deployment"
	DefaultServiceName    = "my-service"
	DefaultIngressName    = "my-test-ingress"

	DefaultImage         = "paulbouwer/hello-kubernetes:1.5"
	DefaultPublishedPort = 80
	DefaultIngressClass  = "alb"

	DefaultMinReplicas          = 2
	DefaultMaxReplicas          = 5
	DefaultTargetCPUUtilization = 70

	// DefaultSSLPolicy is the ALB TLS negotiation policy used with a certificate.
	DefaultSSLPolicy = "ELBSecurityPolicy-TLS-1-2-Ext-2018-06"

	// SharedVolumeName is the emptyDir shared by the multi-container topology.
	SharedVolumeName = "shared-volume"
	// SharedVolumePath is where both containers mount the shared volume.
	SharedVolumePath = "/var/www/html"

	// NameLabel selects the workload's pods.
	NameLabel = "app.kubernetes.io/name"

	singleContainerPort = 8080
	singleContainerUser = 1005
	cpuRequestMillis    = 250
	cpuLimitMillis      = 1000
	frontContainerPort  = 80
	appContainerPort    = 9000
	frontContainerName  = "nginx"
	appContainerName    = "php-fpm"
)

// withDefaults fills zero-valued optional settings.
// Required inputs (namespace) are never defaulted.
func withDefaults(p DeploymentParameters) DeploymentParameters {
	if p.Topology == "" {
		p.Topology = TopologySingle
	}
	if p.Names.Deployment == "" {
		p.Names.Deployment = DefaultDeploymentName
	}
	if p.Names.Service == "" {
		p.Names.Service = DefaultServiceName
	}
	if p.Names.Ingress == "" {
		p.Names.Ingress = DefaultIngressName
	}
	if p.Scaling == (ScalingBounds{}) {
		p.Scaling = ScalingBounds{
			MinReplicas:          DefaultMinReplicas,
			MaxReplicas:          DefaultMaxReplicas,
			TargetCPUUtilization: DefaultTargetCPUUtilization,
		}
	}
	if p.PublishedPort == 0 {
		p.PublishedPort = DefaultPublishedPort
	}
	if p.ExposureType == "" {
		p.ExposureType = ExposureNodePort
	}
	if p.IngressClassName == "" {
		p.IngressClassName = DefaultIngressClass
	}
	return p
}

// ecrImage returns the private ECR reference for repository in the account.
func ecrImage(account, region, repository string) string {
	return fmt.Sprintf("%s.dkr.ecr.%s.amazonaws.com/%s:latest", account, region, repository)
}
