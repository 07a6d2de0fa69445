package main

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-eks-go"
)

func newListCmd(a *app) *cobra.Command {
	var outputFormat string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the manifests and cluster stack resources",
		Long: `List composes the configured deployment and displays every manifest
in emission order and every cluster stack resource.

Examples:
    wetwire-eks list
    wetwire-eks list --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runList(cmd, cmd.OutOrStdout(), outputFormat)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")

	return cmd
}

func (a *app) runList(cmd *cobra.Command, w io.Writer, format string) error {
	cfg, plan, err := a.loadPlan(cmd)
	if err != nil {
		return err
	}
	t, err := a.clusterTemplate(cfg, plan, "")
	if err != nil {
		return err
	}

	result := wetwire.ListResult{}
	for _, m := range plan.Manifests() {
		result.Manifests = append(result.Manifests, wetwire.ManifestInfo{Kind: string(m.Kind), Name: m.Name, Namespace: m.Namespace})
	}
	for name, res := range t.Resources {
		result.Resources = append(result.Resources, wetwire.ListResource{Name: name, Type: res.Type, DependsOn: res.DependsOn})
	}

	// Sort by name for consistent output
	sort.Slice(result.Resources, func(i, j int) bool {
		return result.Resources[i].Name < result.Resources[j].Name
	})

	return outputListResult(w, result, format)
}

func outputListResult(w io.Writer, result wetwire.ListResult, format string) error {
	switch format {
	case "json":
		return writeJSON(w, result)

	case "text":
		fmt.Fprintf(w, "Manifests (%d):\n\n", len(result.Manifests))
		for _, m := range result.Manifests {
			fmt.Fprintf(w, "  %s/%s (namespace %s)\n", m.Kind, m.Name, m.Namespace)
		}
		fmt.Fprintf(w, "\nCluster stack resources (%d):\n\n", len(result.Resources))
		for _, res := range result.Resources {
			fmt.Fprintf(w, "  %s: %s\n", res.Name, res.Type)
		}

	default:
		return fmt.Errorf("unknown format: %s", format)
	}

	return nil
}
