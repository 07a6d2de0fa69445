// Package validation re-checks synthesized output before it is handed to the
// cluster or to CloudFormation.
//
// Two kinds of checks run:
//   - manifest contracts: the cross-references between the composed
//     Deployment, Service, HorizontalPodAutoscaler and Ingress still hold
//   - template checks: references resolve, then cfn-lint-go validates the
//     rendered template (library dependency)
package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/lex00/cfn-lint-go/pkg/lint"
	"go.uber.org/multierr"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/labels"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/template"
)

// CfnLintResult contains the result of running cfn-lint.
type CfnLintResult struct {
	Passed        bool     `json:"passed"`
	Errors        []string `json:"errors"`
	Warnings      []string `json:"warnings"`
	Informational []string `json:"informational"`
}

// TotalIssues returns the total number of issues found.
func (r CfnLintResult) TotalIssues() int {
	return len(r.Errors) + len(r.Warnings) + len(r.Informational)
}

// ContractError is a broken cross-reference in the manifest set.
type ContractError struct {
	Manifest string
	Reason   string
}

func (e *ContractError) Error() string {
	return fmt.Sprintf("%s: %s", e.Manifest, e.Reason)
}

var emissionOrder = []composer.Kind{
	composer.KindDeployment,
	composer.KindService,
	composer.KindHorizontalPodAutoscaler,
	composer.KindIngress,
}

var tlsAnnotations = []string{
	composer.AnnotationCertificateARN,
	composer.AnnotationListenPorts,
	composer.AnnotationSSLRedirect,
	composer.AnnotationSSLPolicy,
}

// CheckManifests verifies the composed manifest set. Every violation is
// returned, combined with multierr.
func CheckManifests(manifests []composer.Manifest) error {
	if len(manifests) != len(emissionOrder) {
		return &ContractError{Manifest: "manifests", Reason: fmt.Sprintf("expected %d manifests, got %d", len(emissionOrder), len(manifests))}
	}

	var (
		deploy  *appsv1.Deployment
		svc     *corev1.Service
		hpa     *autoscalingv2.HorizontalPodAutoscaler
		ingress *networkingv1.Ingress
		errs    error
	)
	for i, m := range manifests {
		if m.Kind != emissionOrder[i] {
			errs = multierr.Append(errs, contractErr(m, "emitted at position %d, expected %s", i, emissionOrder[i]))
			continue
		}
		var ok bool
		switch m.Kind {
		case composer.KindDeployment:
			deploy, ok = m.Object.(*appsv1.Deployment)
		case composer.KindService:
			svc, ok = m.Object.(*corev1.Service)
		case composer.KindHorizontalPodAutoscaler:
			hpa, ok = m.Object.(*autoscalingv2.HorizontalPodAutoscaler)
		case composer.KindIngress:
			ingress, ok = m.Object.(*networkingv1.Ingress)
		}
		if !ok {
			errs = multierr.Append(errs, contractErr(m, "unexpected object type %T", m.Object))
		}
	}
	if errs != nil {
		return errs
	}

	ns := deploy.Namespace
	for _, m := range manifests {
		if m.Namespace != ns {
			errs = multierr.Append(errs, contractErr(m, "namespace %q differs from deployment namespace %q", m.Namespace, ns))
		}
	}

	errs = multierr.Append(errs, checkService(manifests[1], svc, deploy))
	errs = multierr.Append(errs, checkAutoscaler(manifests[2], hpa, deploy))
	errs = multierr.Append(errs, checkIngress(manifests[3], ingress, svc))
	return errs
}

func checkService(m composer.Manifest, svc *corev1.Service, deploy *appsv1.Deployment) error {
	var errs error
	podLabels := labels.Set(deploy.Spec.Template.Labels)
	if len(svc.Spec.Selector) == 0 || !labels.SelectorFromSet(svc.Spec.Selector).Matches(podLabels) {
		errs = multierr.Append(errs, contractErr(m, "selector does not match deployment %s pod labels", deploy.Name))
	}
	if len(svc.Spec.Ports) != 1 {
		return multierr.Append(errs, contractErr(m, "expected exactly one port, got %d", len(svc.Spec.Ports)))
	}
	containers := deploy.Spec.Template.Spec.Containers
	if len(containers) == 0 || len(containers[0].Ports) == 0 {
		return multierr.Append(errs, contractErr(m, "deployment %s exposes no container port", deploy.Name))
	}
	if got, want := svc.Spec.Ports[0].TargetPort.IntValue(), int(containers[0].Ports[0].ContainerPort); got != want {
		errs = multierr.Append(errs, contractErr(m, "targetPort %d does not match container port %d", got, want))
	}
	return errs
}

func checkAutoscaler(m composer.Manifest, hpa *autoscalingv2.HorizontalPodAutoscaler, deploy *appsv1.Deployment) error {
	var errs error
	ref := hpa.Spec.ScaleTargetRef
	if ref.Kind != string(composer.KindDeployment) || ref.Name != deploy.Name {
		errs = multierr.Append(errs, contractErr(m, "targets %s/%s, expected Deployment/%s", ref.Kind, ref.Name, deploy.Name))
	}
	if hpa.Spec.MinReplicas == nil || *hpa.Spec.MinReplicas < 1 {
		errs = multierr.Append(errs, contractErr(m, "minReplicas must be at least 1"))
	} else if hpa.Spec.MaxReplicas < *hpa.Spec.MinReplicas {
		errs = multierr.Append(errs, contractErr(m, "maxReplicas %d below minReplicas %d", hpa.Spec.MaxReplicas, *hpa.Spec.MinReplicas))
	}
	return errs
}

func checkIngress(m composer.Manifest, ing *networkingv1.Ingress, svc *corev1.Service) error {
	var errs error
	want := composer.ServiceRef{Name: svc.Name}.LoadBalancerName()
	if got := ing.Annotations[composer.AnnotationLoadBalancerName]; got != want {
		errs = multierr.Append(errs, contractErr(m, "load balancer name %q, expected %q", got, want))
	}

	present := 0
	for _, key := range tlsAnnotations {
		if _, ok := ing.Annotations[key]; ok {
			present++
		}
	}
	if present != 0 && present != len(tlsAnnotations) {
		errs = multierr.Append(errs, contractErr(m, "partial TLS annotations: %d of %d present", present, len(tlsAnnotations)))
	}
	for key, val := range ing.Annotations {
		if val == "" {
			errs = multierr.Append(errs, contractErr(m, "annotation %s is empty", key))
		}
	}

	backends := 0
	for _, rule := range ing.Spec.Rules {
		if rule.HTTP == nil {
			continue
		}
		for _, path := range rule.HTTP.Paths {
			backends++
			b := path.Backend.Service
			if b == nil || b.Name != svc.Name {
				errs = multierr.Append(errs, contractErr(m, "path %q does not route to service %s", path.Path, svc.Name))
				continue
			}
			if b.Port.Number != svc.Spec.Ports[0].Port {
				errs = multierr.Append(errs, contractErr(m, "path %q routes to port %d, service publishes %d", path.Path, b.Port.Number, svc.Spec.Ports[0].Port))
			}
		}
	}
	if backends == 0 {
		errs = multierr.Append(errs, contractErr(m, "no backend paths"))
	}
	return errs
}

func contractErr(m composer.Manifest, format string, args ...any) *ContractError {
	return &ContractError{Manifest: string(m.Kind) + "/" + m.Name, Reason: fmt.Sprintf(format, args...)}
}

// CheckTemplate verifies that every DependsOn entry and every Ref, Fn::GetAtt
// and Fn::Sub reference names a resource or parameter of t.
func CheckTemplate(t *wetwire.Template) error {
	if t == nil {
		return fmt.Errorf("nil template")
	}
	if len(t.Resources) == 0 {
		return fmt.Errorf("template has no resources")
	}

	var errs error
	names := make([]string, 0, len(t.Resources))
	for name := range t.Resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := t.Resources[name]
		if res.Type == "" {
			errs = multierr.Append(errs, fmt.Errorf("resource %s: missing Type", name))
		}
		for _, dep := range res.DependsOn {
			if _, ok := t.Resources[dep]; !ok {
				errs = multierr.Append(errs, fmt.Errorf("resource %s: DependsOn unknown resource %s", name, dep))
			}
		}
		for _, ref := range template.References(res.Properties) {
			_, isResource := t.Resources[ref]
			_, isParam := t.Parameters[ref]
			if !isResource && !isParam {
				errs = multierr.Append(errs, fmt.Errorf("resource %s: reference to undefined %s", name, ref))
			}
		}
	}
	return errs
}

// LintTemplate renders t to a temporary file and runs cfn-lint on it.
func LintTemplate(t *wetwire.Template) (*CfnLintResult, error) {
	data, err := template.ToJSON(t)
	if err != nil {
		return nil, fmt.Errorf("rendering template: %w", err)
	}

	dir, err := os.MkdirTemp("", "wetwire-eks-lint")
	if err != nil {
		return nil, fmt.Errorf("creating temp dir: %w", err)
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "template.json")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return nil, fmt.Errorf("writing template: %w", err)
	}
	return RunCfnLint(path)
}

// RunCfnLint runs cfn-lint-go on the given template file.
func RunCfnLint(templatePath string) (*CfnLintResult, error) {
	if _, err := os.Stat(templatePath); err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Template file not found: %s", templatePath)},
		}, nil
	}

	linter := lint.New(lint.Options{})
	matches, err := linter.LintFile(templatePath)
	if err != nil {
		return &CfnLintResult{
			Passed: false,
			Errors: []string{fmt.Sprintf("Linter error: %v", err)},
		}, nil
	}

	result := &CfnLintResult{
		Errors:        []string{},
		Warnings:      []string{},
		Informational: []string{},
	}

	for _, match := range matches {
		formatted := formatMatch(match)

		switch match.Level {
		case "Error":
			result.Errors = append(result.Errors, formatted)
		case "Warning":
			result.Warnings = append(result.Warnings, formatted)
		default:
			result.Informational = append(result.Informational, formatted)
		}
	}

	// Warnings are acceptable
	result.Passed = len(result.Errors) == 0

	return result, nil
}

// formatMatch formats a cfn-lint-go match for display.
func formatMatch(match lint.Match) string {
	if len(match.Location.Path) == 0 {
		return fmt.Sprintf("%s: %s", match.Rule.ID, match.Message)
	}
	parts := make([]string, len(match.Location.Path))
	for i, p := range match.Location.Path {
		parts[i] = fmt.Sprintf("%v", p)
	}
	return fmt.Sprintf("%s: %s (at %s)", match.Rule.ID, match.Message, strings.Join(parts, "/"))
}

// Options selects what Validate runs.
type Options struct {
	// Lint runs cfn-lint on every template.
	Lint bool
}

// Validate checks manifests and templates and collects the outcome. Templates
// are checked in name order.
func Validate(manifests []composer.Manifest, templates map[string]*wetwire.Template, opts Options) *wetwire.ValidateResult {
	result := &wetwire.ValidateResult{Manifests: len(manifests)}

	if len(manifests) > 0 {
		for _, err := range multierr.Errors(CheckManifests(manifests)) {
			result.Errors = append(result.Errors, err.Error())
		}
	}

	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		t := templates[name]
		if t != nil {
			result.Resources += len(t.Resources)
		}
		for _, err := range multierr.Errors(CheckTemplate(t)) {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
		}
		if !opts.Lint || t == nil {
			continue
		}
		lintResult, err := LintTemplate(t)
		if err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", name, err))
			continue
		}
		for _, e := range lintResult.Errors {
			result.Errors = append(result.Errors, name+": "+e)
		}
		for _, w := range lintResult.Warnings {
			result.Warnings = append(result.Warnings, name+": "+w)
		}
	}

	result.Success = len(result.Errors) == 0
	return result
}
