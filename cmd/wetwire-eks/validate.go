package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/validation"
)

func newValidateCmd(a *app) *cobra.Command {
	var (
		outputFormat string
		lint         bool
	)

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and synthesized output",
		Long: `Validate loads the configuration, composes the manifests and both stacks,
and checks them: manifest cross-references, template references and, unless
--lint=false, cfn-lint rules.

Examples:
    wetwire-eks validate
    wetwire-eks validate --format json
    wetwire-eks validate --lint=false`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runValidate(cmd, cmd.OutOrStdout(), outputFormat, lint)
		},
	}

	cmd.Flags().StringVarP(&outputFormat, "format", "f", "text", "Output format: text or json")
	cmd.Flags().BoolVar(&lint, "lint", true, "Run cfn-lint on the synthesized templates")

	return cmd
}

func (a *app) runValidate(cmd *cobra.Command, w io.Writer, format string, lint bool) error {
	if format != "text" && format != "json" {
		return fmt.Errorf("unknown format: %s", format)
	}

	result := a.validate(cmd, lint)
	if format == "json" {
		if err := writeJSON(w, result); err != nil {
			return err
		}
	} else {
		for _, e := range result.Errors {
			fmt.Fprintf(w, "error: %s\n", e)
		}
		for _, warn := range result.Warnings {
			fmt.Fprintf(w, "warning: %s\n", warn)
		}
		if result.Success {
			fmt.Fprintf(w, "Valid: %d manifests, %d resources\n", result.Manifests, result.Resources)
		}
	}

	if !result.Success {
		return fmt.Errorf("validation failed with %d errors", len(result.Errors))
	}
	return nil
}

func (a *app) validate(cmd *cobra.Command, lint bool) *wetwire.ValidateResult {
	cfg, plan, err := a.loadPlan(cmd)
	if err != nil {
		return &wetwire.ValidateResult{Errors: errorStrings(err)}
	}

	templates := make(map[string]*wetwire.Template)
	var errs []string
	if t, err := a.clusterTemplate(cfg, plan, ""); err != nil {
		errs = append(errs, err.Error())
	} else {
		templates["cluster"] = t
	}
	if t, err := a.pipelineTemplate(cfg, pipelineOptions{}); err != nil {
		errs = append(errs, err.Error())
	} else {
		templates["pipeline"] = t
	}

	result := validation.Validate(plan.Manifests(), templates, validation.Options{Lint: lint})
	if len(errs) > 0 {
		result.Errors = append(errs, result.Errors...)
		result.Success = false
	}
	a.log.Debug("validation finished",
		zap.Bool("success", result.Success),
		zap.Int("errors", len(result.Errors)),
		zap.Int("warnings", len(result.Warnings)))
	return result
}
