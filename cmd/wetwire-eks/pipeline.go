package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/config"
	"github.com/lex00/wetwire-eks-go/internal/pipeline"
)

type pipelineOptions struct {
	format     string
	outputFile string
	branch     string
	stage      string
	buildSpec  bool
}

func newPipelineCmd(a *app) *cobra.Command {
	var opts pipelineOptions

	cmd := &cobra.Command{
		Use:   "pipeline",
		Short: "Generate the delivery pipeline CloudFormation template",
		Long: `Pipeline generates the CloudFormation template for the delivery pipeline:
a CodeCommit source stage, a CodeBuild synth stage running wetwire-eks and a
deploy stage that applies the synthesized cluster stack.

Examples:
    wetwire-eks pipeline
    wetwire-eks pipeline --branch release --stage Prod
    wetwire-eks pipeline --buildspec`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runPipeline(cmd, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.branch, "branch", pipeline.DefaultBranch, "Source branch")
	cmd.Flags().StringVar(&opts.stage, "stage", pipeline.DefaultStageName, "Deploy stage name")
	cmd.Flags().BoolVar(&opts.buildSpec, "buildspec", false, "Print only the synth step buildspec")

	return cmd
}

func (a *app) runPipeline(cmd *cobra.Command, w io.Writer, opts pipelineOptions) error {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return err
	}

	if opts.buildSpec {
		spec, err := pipeline.BuildSpec(a.pipelineOptions(cfg, opts))
		if err != nil {
			return err
		}
		return writeOutput(w, opts.outputFile, []byte(spec))
	}

	t, err := a.pipelineTemplate(cfg, opts)
	if err != nil {
		return err
	}
	data, err := renderTemplate(t, opts.format)
	if err != nil {
		return err
	}
	return writeOutput(w, opts.outputFile, data)
}

func (a *app) pipelineOptions(cfg *config.Config, opts pipelineOptions) pipeline.Options {
	po := cfg.PipelineOptions()
	po.Branch = opts.branch
	po.StageName = opts.stage
	return po
}

func (a *app) pipelineTemplate(cfg *config.Config, opts pipelineOptions) (*wetwire.Template, error) {
	t, err := pipeline.Synthesize(a.pipelineOptions(cfg, opts))
	if err != nil {
		return nil, fmt.Errorf("synthesizing pipeline stack: %w", err)
	}
	a.log.Debug("pipeline stack synthesized", zap.Int("resources", len(t.Resources)))
	return t, nil
}
