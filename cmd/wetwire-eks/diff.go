package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/differ"
)

// currentArg stands for the artifact synthesized from the current configuration.
const currentArg = "-"

type diffOptions struct {
	format      string
	ignoreOrder bool
	manifests   bool
}

func newDiffCmd(a *app) *cobra.Command {
	var opts diffOptions

	cmd := &cobra.Command{
		Use:   "diff <old> <new>",
		Short: "Compare two templates or manifest sets",
		Long: `Diff compares two CloudFormation templates, or with --manifests two
manifest sets, and reports added, removed and modified entries.

Manifest sets are read from a multi-document YAML file or from a synth
output directory. Pass "-" for either side to compare against what the
current configuration synthesizes.

Examples:
    wetwire-eks diff old.json new.json
    wetwire-eks diff cluster.template.json -
    wetwire-eks diff --manifests dist/AppChart -
    wetwire-eks diff old.json new.json --format json --ignore-order`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDiff(cmd, cmd.OutOrStdout(), args[0], args[1], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&opts.ignoreOrder, "ignore-order", false, "Ignore array element order")
	cmd.Flags().BoolVar(&opts.manifests, "manifests", false, "Compare Kubernetes manifest sets instead of templates")

	return cmd
}

func (a *app) runDiff(cmd *cobra.Command, w io.Writer, oldPath, newPath string, opts diffOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format: %s", opts.format)
	}
	diffOpts := differ.Options{IgnoreOrder: opts.ignoreOrder}

	var (
		result *differ.Result
		err    error
	)
	if opts.manifests {
		var docs1, docs2 []map[string]any
		if docs1, err = a.loadManifestDocs(cmd, oldPath); err != nil {
			return err
		}
		if docs2, err = a.loadManifestDocs(cmd, newPath); err != nil {
			return err
		}
		result, err = differ.CompareManifests(docs1, docs2, diffOpts)
	} else {
		var t1, t2 *wetwire.Template
		if t1, err = a.loadTemplate(cmd, oldPath); err != nil {
			return err
		}
		if t2, err = a.loadTemplate(cmd, newPath); err != nil {
			return err
		}
		result, err = differ.Compare(t1, t2, diffOpts)
	}
	if err != nil {
		return err
	}

	if opts.format == "json" {
		return writeJSON(w, wetwire.DiffResult{Success: true, Diff: result.Diff, Summary: result.Summary})
	}
	_, err = io.WriteString(w, differ.Format(result))
	return err
}

func (a *app) loadManifestDocs(cmd *cobra.Command, path string) ([]map[string]any, error) {
	if path != currentArg {
		docs, err := differ.LoadManifests(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return docs, nil
	}
	_, plan, err := a.loadPlan(cmd)
	if err != nil {
		return nil, err
	}
	return differ.ManifestDocuments(plan.Manifests())
}

func (a *app) loadTemplate(cmd *cobra.Command, path string) (*wetwire.Template, error) {
	if path != currentArg {
		t, err := differ.LoadTemplate(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", path, err)
		}
		return t, nil
	}
	cfg, plan, err := a.loadPlan(cmd)
	if err != nil {
		return nil, err
	}
	return a.clusterTemplate(cfg, plan, "")
}
