package composer

import (
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/multierr"
	"k8s.io/apimachinery/pkg/util/validation"
)

// bucketNamePattern is the S3 general purpose bucket naming rule.
var bucketNamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9.-]{1,61}[a-z0-9]$`)

// Plan is the typed entity graph for one composition, before rendering.
type Plan struct {
	Params   DeploymentParameters
	Workload *Workload
	Scaling  *ScalingPolicy
	Exposure *ServiceExposure
	Ingress  *IngressRoute
	Admins   []AdminBinding
}

// ValidateParameters checks the cross-field invariants of p. All violations
// are reported, combined with multierr; each is a *ConfigurationError.
func ValidateParameters(params DeploymentParameters) error {
	p := withDefaults(params)
	var errs error

	if strings.TrimSpace(p.Namespace) == "" {
		errs = multierr.Append(errs, configErr("namespace", "must not be empty"))
	} else if msgs := validation.IsDNS1123Label(p.Namespace); len(msgs) > 0 {
		errs = multierr.Append(errs, configErr("namespace", "%s", strings.Join(msgs, "; ")))
	}

	for _, n := range []struct{ field, name string }{
		{"names.deployment", p.Names.Deployment},
		{"names.service", p.Names.Service},
		{"names.ingress", p.Names.Ingress},
	} {
		if msgs := validation.IsDNS1123Subdomain(n.name); len(msgs) > 0 {
			errs = multierr.Append(errs, configErr(n.field, "%q: %s", n.name, strings.Join(msgs, "; ")))
		}
	}

	if p.RecordName != "" && p.HostedZoneID == "" {
		errs = multierr.Append(errs, configErr("hostedZoneId", "required when recordName %q is set", p.RecordName))
	}
	if p.HostedZoneName != "" && p.HostedZoneID == "" {
		errs = multierr.Append(errs, configErr("hostedZoneId", "required when hostedZoneName %q is set", p.HostedZoneName))
	}

	if b := p.AlbAccessLogsBucketName; b != "" && !bucketNamePattern.MatchString(b) {
		errs = multierr.Append(errs, configErr("albAccessLogsBucketName", "%q is not a valid S3 bucket name", b))
	}
	if p.PublishedPort > 65535 {
		errs = multierr.Append(errs, configErr("publishedPort", "must be <= 65535, got %d", p.PublishedPort))
	}

	return errs
}

// NewPlan validates params and builds every entity. No partial plan is
// ever returned.
func NewPlan(params DeploymentParameters) (*Plan, error) {
	if err := ValidateParameters(params); err != nil {
		return nil, err
	}
	p := withDefaults(params)

	workload, err := BuildWorkload(p)
	if err != nil {
		return nil, err
	}
	scaling, err := BuildScaling(workload, p.Scaling.MinReplicas, p.Scaling.MaxReplicas, p.Scaling.TargetCPUUtilization)
	if err != nil {
		return nil, err
	}
	exposure, err := BuildExposure(workload, p.Names.Service, p.PublishedPort, p.ExposureType)
	if err != nil {
		return nil, err
	}
	ingress, err := BuildIngress(exposure, p)
	if err != nil {
		return nil, err
	}
	admins, err := BindAdminIdentities(p)
	if err != nil {
		return nil, fmt.Errorf("binding admin identities: %w", err)
	}

	return &Plan{
		Params:   p,
		Workload: workload,
		Scaling:  scaling,
		Exposure: exposure,
		Ingress:  ingress,
		Admins:   admins,
	}, nil
}

// Manifests renders the plan in emission order: Deployment, Service,
// HorizontalPodAutoscaler, Ingress.
func (pl *Plan) Manifests() []Manifest {
	return []Manifest{
		{Kind: KindDeployment, Name: pl.Workload.Ref.Name, Namespace: pl.Workload.Namespace, Object: DeploymentObject(pl.Workload)},
		{Kind: KindService, Name: pl.Exposure.Ref.Name, Namespace: pl.Exposure.Namespace, Object: ServiceObject(pl.Exposure)},
		{Kind: KindHorizontalPodAutoscaler, Name: pl.Scaling.Name, Namespace: pl.Scaling.Namespace, Object: AutoscalerObject(pl.Scaling)},
		{Kind: KindIngress, Name: pl.Ingress.Name, Namespace: pl.Ingress.Namespace, Object: IngressObject(pl.Ingress)},
	}
}

// Compose builds the ordered manifest set for params.
func Compose(params DeploymentParameters) ([]Manifest, error) {
	plan, err := NewPlan(params)
	if err != nil {
		return nil, err
	}
	return plan.Manifests(), nil
}
