// Package template assembles CloudFormation templates from declared resources.
package template

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/serialize"
)

// FormatVersion is the only CloudFormation template format version.
const FormatVersion = "2010-09-09"

// Resource is one resource declaration. Properties is either a struct,
// serialized with serialize.Properties, or a map used as-is.
type Resource struct {
	// Name is the logical ID.
	Name string
	// Type is the CloudFormation type (e.g., "AWS::EKS::Cluster").
	Type       string
	Properties any
	// DependsOn lists explicit dependencies. References found inside the
	// properties are tracked automatically and need not be listed.
	DependsOn []string
}

// Builder constructs a CloudFormation template.
type Builder struct {
	description string
	parameters  map[string]wetwire.Parameter
	resources   map[string]Resource
	outputs     map[string]wetwire.Output

	props map[string]map[string]any
	deps  map[string][]string
}

// NewBuilder creates an empty template builder.
func NewBuilder(description string) *Builder {
	return &Builder{
		description: description,
		parameters:  make(map[string]wetwire.Parameter),
		resources:   make(map[string]Resource),
		outputs:     make(map[string]wetwire.Output),
		props:       make(map[string]map[string]any),
		deps:        make(map[string][]string),
	}
}

// AddParameter declares a template parameter.
func (b *Builder) AddParameter(name string, p wetwire.Parameter) {
	b.parameters[name] = p
}

// AddOutput declares a template output.
func (b *Builder) AddOutput(name string, o wetwire.Output) {
	b.outputs[name] = o
}

// AddResource declares a resource. Logical IDs must be unique and
// alphanumeric.
func (b *Builder) AddResource(r Resource) error {
	if !logicalIDPattern.MatchString(r.Name) {
		return fmt.Errorf("invalid logical ID %q: must be alphanumeric", r.Name)
	}
	if _, exists := b.resources[r.Name]; exists {
		return fmt.Errorf("duplicate resource %q", r.Name)
	}
	if r.Type == "" {
		return fmt.Errorf("resource %s: type is required", r.Name)
	}

	props, err := properties(r.Properties)
	if err != nil {
		return fmt.Errorf("serializing %s: %w", r.Name, err)
	}

	b.resources[r.Name] = r
	b.props[r.Name] = props
	b.deps[r.Name] = mergeDeps(r.DependsOn, References(props))
	return nil
}

// Resources returns the declared logical IDs in dependency order.
func (b *Builder) Resources() ([]string, error) {
	return b.topologicalSort()
}

// Dependencies returns every resource name referenced by the named resource,
// explicit or implicit, restricted to declared resources.
func (b *Builder) Dependencies(name string) []string {
	var out []string
	for _, dep := range b.deps[name] {
		if _, ok := b.resources[dep]; ok {
			out = append(out, dep)
		}
	}
	return out
}

// Build constructs the CloudFormation template.
func (b *Builder) Build() (*wetwire.Template, error) {
	if err := b.checkDependsOn(); err != nil {
		return nil, err
	}
	if _, err := b.topologicalSort(); err != nil {
		return nil, err
	}

	t := &wetwire.Template{
		AWSTemplateFormatVersion: FormatVersion,
		Description:              b.description,
		Resources:                make(map[string]wetwire.ResourceDef, len(b.resources)),
	}

	if len(b.parameters) > 0 {
		t.Parameters = make(map[string]wetwire.Parameter, len(b.parameters))
		for name, p := range b.parameters {
			t.Parameters[name] = p
		}
	}

	for name, r := range b.resources {
		var dependsOn []string
		if len(r.DependsOn) > 0 {
			dependsOn = append([]string(nil), r.DependsOn...)
			sort.Strings(dependsOn)
		}
		t.Resources[name] = wetwire.ResourceDef{
			Type:       r.Type,
			Properties: b.props[name],
			DependsOn:  dependsOn,
		}
	}

	if len(b.outputs) > 0 {
		t.Outputs = make(map[string]wetwire.Output, len(b.outputs))
		for name, o := range b.outputs {
			value, err := normalize(o.Value)
			if err != nil {
				return nil, fmt.Errorf("output %s: %w", name, err)
			}
			o.Value = value
			t.Outputs[name] = o
		}
	}

	return t, nil
}

// checkDependsOn rejects explicit dependencies on undeclared resources.
func (b *Builder) checkDependsOn() error {
	var names []string
	for name := range b.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		for _, dep := range b.resources[name].DependsOn {
			if _, ok := b.resources[dep]; !ok {
				return fmt.Errorf("resource %s depends on undeclared resource %s", name, dep)
			}
		}
	}
	return nil
}

// topologicalSort returns resources in dependency order.
func (b *Builder) topologicalSort() ([]string, error) {
	graph := make(map[string][]string)
	inDegree := make(map[string]int)

	for name := range b.resources {
		graph[name] = nil
		inDegree[name] = 0
	}

	for name := range b.resources {
		for _, dep := range b.Dependencies(name) {
			graph[dep] = append(graph[dep], name)
			inDegree[name]++
		}
	}

	// Kahn's algorithm
	var queue []string
	for name, degree := range inDegree {
		if degree == 0 {
			queue = append(queue, name)
		}
	}
	sort.Strings(queue)

	var result []string
	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]
		result = append(result, node)

		for _, neighbor := range graph[node] {
			inDegree[neighbor]--
			if inDegree[neighbor] == 0 {
				queue = append(queue, neighbor)
				sort.Strings(queue)
			}
		}
	}

	if len(result) != len(b.resources) {
		return nil, b.detectCycle()
	}
	return result, nil
}

// detectCycle finds and reports a cycle in the dependency graph.
func (b *Builder) detectCycle() error {
	visited := make(map[string]bool)
	path := make(map[string]bool)

	var cycle []string
	var findCycle func(node string) bool
	findCycle = func(node string) bool {
		visited[node] = true
		path[node] = true

		for _, dep := range b.Dependencies(node) {
			if !visited[dep] {
				if findCycle(dep) {
					cycle = append([]string{node}, cycle...)
					return true
				}
			} else if path[dep] {
				cycle = append([]string{dep, node}, cycle...)
				return true
			}
		}

		path[node] = false
		return false
	}

	var names []string
	for name := range b.resources {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if !visited[name] && findCycle(name) {
			break
		}
	}

	if len(cycle) > 0 {
		return errors.New("circular dependency detected:\n  " + strings.Join(cycle, "\n    → "))
	}
	return errors.New("circular dependency detected")
}

var (
	logicalIDPattern = regexp.MustCompile(`^[A-Za-z0-9]+$`)
	subVarPattern    = regexp.MustCompile(`\$\{([A-Za-z0-9]+)(?:\.[A-Za-z0-9.]+)?\}`)
)

// References returns the logical IDs referenced by Ref, Fn::GetAtt and
// Fn::Sub inside v, sorted. Pseudo-parameters (AWS::*) are excluded.
func References(v any) []string {
	seen := make(map[string]bool)
	collectRefs(v, seen)

	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

func collectRefs(v any, seen map[string]bool) {
	switch t := v.(type) {
	case map[string]any:
		if ref, ok := t["Ref"].(string); ok && len(t) == 1 {
			addRef(ref, seen)
			return
		}
		if getAtt, ok := t["Fn::GetAtt"].([]any); ok && len(getAtt) > 0 {
			if name, ok := getAtt[0].(string); ok {
				addRef(name, seen)
			}
			return
		}
		if sub, ok := t["Fn::Sub"]; ok {
			collectSubRefs(sub, seen)
			return
		}
		for _, child := range t {
			collectRefs(child, seen)
		}
	case []any:
		for _, child := range t {
			collectRefs(child, seen)
		}
	}
}

func collectSubRefs(sub any, seen map[string]bool) {
	var (
		format string
		vars   map[string]any
	)
	switch t := sub.(type) {
	case string:
		format = t
	case []any:
		if len(t) > 0 {
			format, _ = t[0].(string)
		}
		if len(t) > 1 {
			vars, _ = t[1].(map[string]any)
		}
	}

	for _, m := range subVarPattern.FindAllStringSubmatch(format, -1) {
		if _, local := vars[m[1]]; !local {
			addRef(m[1], seen)
		}
	}
	for _, v := range vars {
		collectRefs(v, seen)
	}
}

func addRef(name string, seen map[string]bool) {
	if name == "" || strings.HasPrefix(name, "AWS::") {
		return
	}
	seen[name] = true
}

func mergeDeps(explicit, implicit []string) []string {
	seen := make(map[string]bool, len(explicit)+len(implicit))
	var out []string
	for _, list := range [][]string{explicit, implicit} {
		for _, name := range list {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

func properties(v any) (map[string]any, error) {
	switch t := v.(type) {
	case nil:
		return nil, nil
	case map[string]any:
		normalized, err := normalize(t)
		if err != nil {
			return nil, err
		}
		m, _ := normalized.(map[string]any)
		return m, nil
	default:
		return serialize.Properties(v)
	}
}

// normalize round-trips v through JSON so intrinsic values become plain maps.
func normalize(v any) (any, error) {
	if v == nil {
		return nil, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	var out any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ToJSON serializes the template to JSON.
func ToJSON(t *wetwire.Template) ([]byte, error) {
	return json.MarshalIndent(t, "", "  ")
}

// ToYAML serializes the template to YAML.
func ToYAML(t *wetwire.Template) ([]byte, error) {
	return yaml.Marshal(t)
}
