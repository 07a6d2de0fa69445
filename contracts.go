// Package wetwire_eks synthesizes the deployment of a containerized web
// application onto a managed EKS cluster.
//
// Two artifacts are produced from one validated configuration:
//
//   - Kubernetes manifests (Deployment, Service, HorizontalPodAutoscaler and
//     an ALB Ingress) written by `wetwire-eks synth`;
//   - CloudFormation templates for the cluster and its delivery pipeline,
//     written by `wetwire-eks stack` and `wetwire-eks pipeline`.
//
// This package holds the template model and the JSON result types shared by
// the CLI commands.
package wetwire_eks

// Template represents a CloudFormation template.
type Template struct {
	AWSTemplateFormatVersion string                 `json:"AWSTemplateFormatVersion" yaml:"AWSTemplateFormatVersion"`
	Description              string                 `json:"Description,omitempty" yaml:"Description,omitempty"`
	Parameters               map[string]Parameter   `json:"Parameters,omitempty" yaml:"Parameters,omitempty"`
	Resources                map[string]ResourceDef `json:"Resources" yaml:"Resources"`
	Outputs                  map[string]Output      `json:"Outputs,omitempty" yaml:"Outputs,omitempty"`
}

// ResourceDef is a single resource in the CloudFormation template.
type ResourceDef struct {
	Type       string         `json:"Type" yaml:"Type"`
	Properties map[string]any `json:"Properties,omitempty" yaml:"Properties,omitempty"`
	DependsOn  []string       `json:"DependsOn,omitempty" yaml:"DependsOn,omitempty"`
}

// Parameter is a CloudFormation template parameter.
type Parameter struct {
	Type          string   `json:"Type" yaml:"Type"`
	Description   string   `json:"Description,omitempty" yaml:"Description,omitempty"`
	Default       any      `json:"Default,omitempty" yaml:"Default,omitempty"`
	AllowedValues []string `json:"AllowedValues,omitempty" yaml:"AllowedValues,omitempty"`
}

// Output is a CloudFormation template output.
type Output struct {
	Description string        `json:"Description,omitempty" yaml:"Description,omitempty"`
	Value       any           `json:"Value" yaml:"Value"`
	Export      *OutputExport `json:"Export,omitempty" yaml:"Export,omitempty"`
}

// OutputExport names a cross-stack export.
type OutputExport struct {
	Name string `json:"Name" yaml:"Name"`
}

// SynthResult is the JSON output from `wetwire-eks synth`.
type SynthResult struct {
	Success   bool           `json:"success"`
	Chart     string         `json:"chart,omitempty"`
	Files     []string       `json:"files,omitempty"`
	Manifests []ManifestInfo `json:"manifests,omitempty"`
	Errors    []string       `json:"errors,omitempty"`
}

// ManifestInfo identifies one synthesized manifest.
type ManifestInfo struct {
	Kind      string `json:"kind"`
	Name      string `json:"name"`
	Namespace string `json:"namespace"`
	File      string `json:"file,omitempty"`
}

// StackResult is the JSON output from `wetwire-eks stack` and `wetwire-eks pipeline`.
type StackResult struct {
	Success   bool     `json:"success"`
	Template  Template `json:"template,omitempty"`
	Resources []string `json:"resources,omitempty"`
	Errors    []string `json:"errors,omitempty"`
}

// ValidateResult is the JSON output from `wetwire-eks validate`.
type ValidateResult struct {
	Success   bool     `json:"success"`
	Manifests int      `json:"manifests"`
	Resources int      `json:"resources"`
	Errors    []string `json:"errors,omitempty"`
	Warnings  []string `json:"warnings,omitempty"`
}

// ListResult is the JSON output from `wetwire-eks list`.
type ListResult struct {
	Manifests []ManifestInfo `json:"manifests"`
	Resources []ListResource `json:"resources,omitempty"`
}

// ListResource is a single CloudFormation resource in the list output.
type ListResource struct {
	Name      string   `json:"name"`
	Type      string   `json:"type"`
	DependsOn []string `json:"dependsOn,omitempty"`
}

// DNSResult is the JSON output from `wetwire-eks dns`.
type DNSResult struct {
	Ready      bool   `json:"ready"`
	Configured bool   `json:"configured"`
	Address    string `json:"address,omitempty"`
	ZoneID     string `json:"zoneId,omitempty"`
	RecordName string `json:"recordName,omitempty"`
	Type       string `json:"type,omitempty"`
	Applied    bool   `json:"applied"`
	ChangeID   string `json:"changeId,omitempty"`
}

// DiffResult is the JSON output from `wetwire-eks diff`.
type DiffResult struct {
	Success bool        `json:"success"`
	Diff    Diff        `json:"diff"`
	Summary DiffSummary `json:"summary"`
}

// Diff lists the entries that differ between two artifacts.
type Diff struct {
	Added    []DiffEntry `json:"added,omitempty"`
	Removed  []DiffEntry `json:"removed,omitempty"`
	Modified []DiffEntry `json:"modified,omitempty"`
}

// DiffEntry is a single differing resource or manifest. Name is the
// CloudFormation logical ID or "Kind/name" for manifests.
type DiffEntry struct {
	Name    string   `json:"name"`
	Type    string   `json:"type"`
	Changes []string `json:"changes,omitempty"`
}

// DiffSummary counts the entries of a Diff.
type DiffSummary struct {
	Added    int `json:"added"`
	Removed  int `json:"removed"`
	Modified int `json:"modified"`
	Total    int `json:"total"`
}
