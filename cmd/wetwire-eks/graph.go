package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/lex00/wetwire-eks-go/internal/graph"
)

type graphOptions struct {
	source            string
	format            string
	includeParameters bool
	clusterByType     bool
}

func newGraphCmd(a *app) *cobra.Command {
	var opts graphOptions

	cmd := &cobra.Command{
		Use:   "graph",
		Short: "Generate DOT graph of manifest or resource references",
		Long: `Generate a DOT or Mermaid format graph showing how the synthesized
objects reference each other.

The manifests source links the autoscaler to its deployment, the service to
the pods it selects and the ingress to its backend service. The stack and
pipeline sources link CloudFormation resources through Ref, Fn::GetAtt,
Fn::Sub and DependsOn.

The output can be rendered with Graphviz:
    wetwire-eks graph | dot -Tpng -o deps.png

Examples:
    wetwire-eks graph
    wetwire-eks graph --source stack -p       # include parameters
    wetwire-eks graph --source stack -c       # cluster by service
    wetwire-eks graph -f mermaid              # mermaid format`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runGraph(cmd, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.source, "source", "s", "manifests", "Graph source: manifests, stack or pipeline")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "dot", "Output format: dot or mermaid")
	cmd.Flags().BoolVarP(&opts.includeParameters, "include-parameters", "p", false, "Include parameter nodes in the graph")
	cmd.Flags().BoolVarP(&opts.clusterByType, "cluster", "c", false, "Cluster nodes by namespace or AWS service")

	return cmd
}

func (a *app) runGraph(cmd *cobra.Command, w io.Writer, opts graphOptions) error {
	var graphFormat graph.Format
	switch opts.format {
	case "dot":
		graphFormat = graph.FormatDOT
	case "mermaid":
		graphFormat = graph.FormatMermaid
	default:
		return fmt.Errorf("unknown format: %s (use 'dot' or 'mermaid')", opts.format)
	}

	cfg, plan, err := a.loadPlan(cmd)
	if err != nil {
		return err
	}

	var g *graph.Graph
	switch opts.source {
	case "manifests":
		g = graph.FromManifests(plan.Manifests())
	case "stack":
		t, err := a.clusterTemplate(cfg, plan, "")
		if err != nil {
			return err
		}
		g = graph.FromTemplate(t)
	case "pipeline":
		t, err := a.pipelineTemplate(cfg, pipelineOptions{})
		if err != nil {
			return err
		}
		g = graph.FromTemplate(t)
	default:
		return fmt.Errorf("unknown source: %s (use 'manifests', 'stack' or 'pipeline')", opts.source)
	}

	gen := &graph.Generator{
		Format:            graphFormat,
		IncludeParameters: opts.includeParameters,
		ClusterByType:     opts.clusterByType,
	}
	return gen.Generate(g, w)
}
