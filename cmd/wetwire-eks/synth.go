package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/synth"
)

type synthOptions struct {
	outDir string
	chart  string
	layout string
	format string
}

func newSynthCmd(a *app) *cobra.Command {
	var opts synthOptions

	cmd := &cobra.Command{
		Use:   "synth",
		Short: "Write the Kubernetes manifests",
		Long: `Synth composes the Deployment, Service, HorizontalPodAutoscaler and
Ingress for the configured application and writes them to the output directory.

Nothing is written when the configuration is invalid; every violation is
reported.

Examples:
    wetwire-eks synth
    wetwire-eks synth --output dist --layout file
    wetwire-eks synth --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runSynth(cmd, cmd.OutOrStdout(), opts)
		},
	}

	addSynthFlags(cmd, &opts)
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Result format: text or json")

	return cmd
}

func addSynthFlags(cmd *cobra.Command, opts *synthOptions) {
	cmd.Flags().StringVarP(&opts.outDir, "output", "o", synth.DefaultOutDir, "Output directory")
	cmd.Flags().StringVar(&opts.chart, "chart", synth.DefaultChart, "Chart name used for file and folder names")
	cmd.Flags().StringVar(&opts.layout, "layout", string(synth.LayoutFolder), "Output layout: file or folder")
}

func (a *app) runSynth(cmd *cobra.Command, w io.Writer, opts synthOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format: %s", opts.format)
	}

	_, plan, err := a.loadPlan(cmd)
	if err != nil {
		if opts.format == "json" {
			_ = writeJSON(w, wetwire.SynthResult{Success: false, Errors: errorStrings(err)})
		}
		return err
	}

	writer, err := synth.New(synth.Options{OutDir: opts.outDir, Chart: opts.chart, Layout: synth.Layout(opts.layout)}, a.log)
	if err != nil {
		return err
	}
	infos, err := writer.Write(plan.Manifests())
	if err != nil {
		return err
	}

	result := wetwire.SynthResult{Success: true, Chart: opts.chart, Manifests: infos}
	seen := make(map[string]bool)
	for _, info := range infos {
		if !seen[info.File] {
			seen[info.File] = true
			result.Files = append(result.Files, info.File)
		}
	}

	if opts.format == "json" {
		return writeJSON(w, result)
	}
	for _, info := range infos {
		fmt.Fprintf(w, "%s/%s -> %s\n", info.Kind, info.Name, info.File)
	}
	return nil
}
