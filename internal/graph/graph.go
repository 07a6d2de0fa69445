// Package graph generates DOT and Mermaid graphs of how the synthesized
// manifests and CloudFormation resources reference each other.
package graph

import (
	"io"
	"sort"
	"strings"

	"github.com/emicklei/dot"
	appsv1 "k8s.io/api/apps/v1"
	autoscalingv2 "k8s.io/api/autoscaling/v2"
	corev1 "k8s.io/api/core/v1"
	networkingv1 "k8s.io/api/networking/v1"
	"k8s.io/apimachinery/pkg/labels"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/template"
)

// Format specifies the output format for the graph.
type Format string

const (
	// FormatDOT outputs Graphviz DOT format.
	FormatDOT Format = "dot"
	// FormatMermaid outputs Mermaid format for GitHub/markdown rendering.
	FormatMermaid Format = "mermaid"
)

// Node is a manifest or template entry.
type Node struct {
	ID    string
	Type  string
	Group string
	// Parameter marks a template parameter.
	Parameter bool
}

// Edge points from a referencing node to the node it references.
type Edge struct {
	From, To string
	// Attribute marks a reference to an attribute of the target rather than
	// to the target itself.
	Attribute bool
}

// Graph is a set of nodes and edges in a stable order.
type Graph struct {
	Nodes []Node
	Edges []Edge
}

// Generator renders a Graph.
type Generator struct {
	// IncludeParameters includes template parameters in the graph.
	IncludeParameters bool

	// Format specifies the output format (dot or mermaid). Defaults to dot.
	Format Format

	// ClusterByType groups nodes that share a group.
	ClusterByType bool
}

// FromManifests links the manifest set the way the cluster resolves it: the
// autoscaler targets the deployment, the service selects the deployment's
// pods and the ingress routes to the service.
func FromManifests(manifests []composer.Manifest) *Graph {
	g := &Graph{}
	byKind := make(map[composer.Kind][]composer.Manifest)
	for _, m := range manifests {
		g.Nodes = append(g.Nodes, Node{ID: manifestID(m.Kind, m.Name), Type: string(m.Kind), Group: m.Namespace})
		byKind[m.Kind] = append(byKind[m.Kind], m)
	}

	for _, m := range manifests {
		switch obj := m.Object.(type) {
		case *autoscalingv2.HorizontalPodAutoscaler:
			ref := obj.Spec.ScaleTargetRef
			if ref.Kind == string(composer.KindDeployment) && hasManifest(byKind, composer.KindDeployment, ref.Name) {
				g.Edges = append(g.Edges, Edge{From: manifestID(m.Kind, m.Name), To: manifestID(composer.KindDeployment, ref.Name)})
			}
		case *corev1.Service:
			if len(obj.Spec.Selector) == 0 {
				continue
			}
			selector := labels.SelectorFromSet(obj.Spec.Selector)
			for _, d := range byKind[composer.KindDeployment] {
				if podLabels, ok := templateLabels(d); ok && selector.Matches(labels.Set(podLabels)) {
					g.Edges = append(g.Edges, Edge{From: manifestID(m.Kind, m.Name), To: manifestID(d.Kind, d.Name)})
				}
			}
		case *networkingv1.Ingress:
			for _, svc := range ingressServices(obj) {
				if hasManifest(byKind, composer.KindService, svc) {
					g.Edges = append(g.Edges, Edge{From: manifestID(m.Kind, m.Name), To: manifestID(composer.KindService, svc)})
				}
			}
		}
	}
	return g
}

// FromTemplate links template resources through DependsOn and the Ref,
// Fn::GetAtt and Fn::Sub references in their properties.
func FromTemplate(t *wetwire.Template) *Graph {
	g := &Graph{}
	for _, name := range sortedKeys(t.Parameters) {
		g.Nodes = append(g.Nodes, Node{ID: name, Type: t.Parameters[name].Type, Parameter: true})
	}
	for _, name := range sortedKeys(t.Resources) {
		res := t.Resources[name]
		g.Nodes = append(g.Nodes, Node{ID: name, Type: res.Type, Group: service(res.Type)})
	}

	for _, name := range sortedKeys(t.Resources) {
		res := t.Resources[name]
		attrs := getAttTargets(res.Properties)
		deps := make(map[string]bool)
		for _, dep := range res.DependsOn {
			deps[dep] = true
		}
		for _, ref := range template.References(res.Properties) {
			deps[ref] = true
		}
		for _, dep := range sortedKeys(deps) {
			_, isResource := t.Resources[dep]
			_, isParam := t.Parameters[dep]
			if !isResource && !isParam {
				continue
			}
			g.Edges = append(g.Edges, Edge{From: name, To: dep, Attribute: attrs[dep]})
		}
	}
	return g
}

// Generate renders gr and writes it to w.
func (g *Generator) Generate(gr *Graph, w io.Writer) error {
	graph := g.buildGraph(gr)

	var output string
	if g.Format == FormatMermaid {
		output = dot.MermaidGraph(graph, dot.MermaidTopToBottom)
	} else {
		output = graph.String()
	}

	_, err := io.WriteString(w, output)
	return err
}

// GenerateString is a convenience method that returns the graph as a string.
func (g *Generator) GenerateString(gr *Graph) (string, error) {
	var sb strings.Builder
	if err := g.Generate(gr, &sb); err != nil {
		return "", err
	}
	return sb.String(), nil
}

func (g *Generator) buildGraph(gr *Graph) *dot.Graph {
	graph := dot.NewGraph(dot.Directed)
	graph.Attr("rankdir", "TB")

	graph.NodeInitializer(func(n dot.Node) {
		n.Attr("shape", "box")
		n.Attr("fontname", "Arial")
	})
	graph.EdgeInitializer(func(e dot.Edge) {
		e.Attr("fontname", "Arial")
		e.Attr("fontsize", "10")
	})

	params := make(map[string]bool)
	groups := make(map[string]int)
	for _, n := range gr.Nodes {
		if n.Parameter {
			params[n.ID] = true
			continue
		}
		groups[n.Group]++
	}

	clusters := make(map[string]*dot.Graph)
	for _, n := range gr.Nodes {
		if n.Parameter {
			if !g.IncludeParameters {
				continue
			}
			node := graph.Node(n.ID)
			node.Attr("shape", "ellipse")
			node.Attr("style", "dashed")
			node.Label(n.ID)
			continue
		}

		parent := graph
		if g.ClusterByType && n.Group != "" && groups[n.Group] > 1 {
			cluster, ok := clusters[n.Group]
			if !ok {
				cluster = graph.Subgraph("cluster_"+n.Group, dot.ClusterOption{})
				cluster.Attr("label", n.Group)
				cluster.Attr("style", "rounded")
				cluster.Attr("bgcolor", "lightyellow")
				clusters[n.Group] = cluster
			}
			parent = cluster
		}
		parent.Node(n.ID).Label(n.ID + "\\n[" + n.Type + "]")
	}

	for _, e := range gr.Edges {
		if params[e.To] && !g.IncludeParameters {
			continue
		}
		edge := graph.Edge(graph.Node(e.From), graph.Node(e.To))
		if e.Attribute {
			edge.Attr("color", "blue")
		}
	}

	return graph
}

func manifestID(kind composer.Kind, name string) string {
	return string(kind) + "/" + name
}

func hasManifest(byKind map[composer.Kind][]composer.Manifest, kind composer.Kind, name string) bool {
	for _, m := range byKind[kind] {
		if m.Name == name {
			return true
		}
	}
	return false
}

func templateLabels(m composer.Manifest) (map[string]string, bool) {
	d, ok := m.Object.(*appsv1.Deployment)
	if !ok {
		return nil, false
	}
	return d.Spec.Template.Labels, true
}

func ingressServices(ing *networkingv1.Ingress) []string {
	seen := make(map[string]bool)
	var names []string
	add := func(b *networkingv1.IngressBackend) {
		if b == nil || b.Service == nil || seen[b.Service.Name] {
			return
		}
		seen[b.Service.Name] = true
		names = append(names, b.Service.Name)
	}
	add(ing.Spec.DefaultBackend)
	for _, rule := range ing.Spec.Rules {
		if rule.HTTP == nil {
			continue
		}
		for i := range rule.HTTP.Paths {
			add(&rule.HTTP.Paths[i].Backend)
		}
	}
	return names
}

// getAttTargets returns the logical names referenced through Fn::GetAtt.
func getAttTargets(v any) map[string]bool {
	targets := make(map[string]bool)
	var walk func(any)
	walk = func(v any) {
		switch t := v.(type) {
		case map[string]any:
			if att, ok := t["Fn::GetAtt"]; ok {
				if parts, ok := att.([]any); ok && len(parts) > 0 {
					if name, ok := parts[0].(string); ok {
						targets[name] = true
					}
				}
			}
			for _, child := range t {
				walk(child)
			}
		case []any:
			for _, child := range t {
				walk(child)
			}
		}
	}
	walk(v)
	return targets
}

// service extracts the service from a CloudFormation type.
// e.g., "AWS::EKS::Cluster" -> "EKS"
func service(cfType string) string {
	parts := strings.Split(cfType, "::")
	if len(parts) == 3 {
		return parts[1]
	}
	return "Other"
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
