package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/config"
	"github.com/lex00/wetwire-eks-go/internal/stack"
)

type stackOptions struct {
	format     string
	outputFile string
	dnsAddress string
}

func newStackCmd(a *app) *cobra.Command {
	var opts stackOptions

	cmd := &cobra.Command{
		Use:   "stack",
		Short: "Generate the cluster CloudFormation template",
		Long: `Stack generates the CloudFormation template for the EKS Fargate cluster:
cluster and pod execution roles, the cluster, its Fargate profile, an access
entry per admin user or role and, when configured, the ALB access-log bucket.

Pass the resolved ingress address to also declare the DNS record.

Examples:
    wetwire-eks stack
    wetwire-eks stack --format yaml -o cluster.yaml
    wetwire-eks stack --dns-address k8s-default-alb-123.us-east-1.elb.amazonaws.com`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runStack(cmd, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "json", "Output format: json or yaml")
	cmd.Flags().StringVarP(&opts.outputFile, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringVar(&opts.dnsAddress, "dns-address", "", "Resolved ingress address to publish as a DNS record")

	return cmd
}

func (a *app) runStack(cmd *cobra.Command, w io.Writer, opts stackOptions) error {
	cfg, plan, err := a.loadPlan(cmd)
	if err != nil {
		return err
	}

	t, err := a.clusterTemplate(cfg, plan, opts.dnsAddress)
	if err != nil {
		return err
	}

	data, err := renderTemplate(t, opts.format)
	if err != nil {
		return err
	}
	return writeOutput(w, opts.outputFile, data)
}

// clusterTemplate synthesizes the cluster stack. A non-empty address adds
// the DNS record when a hosted zone and record name are configured.
func (a *app) clusterTemplate(cfg *config.Config, plan *composer.Plan, address string) (*wetwire.Template, error) {
	stackOpts := cfg.StackOptions()
	if address != "" {
		binding, _ := composer.BuildDNSBinding(address, plan.Params)
		if binding == nil {
			a.log.Warn("dns address given but no hosted zone and record are configured", zap.String("address", address))
		}
		stackOpts.DNS = binding
	}

	t, err := stack.Synthesize(plan, stackOpts)
	if err != nil {
		return nil, fmt.Errorf("synthesizing cluster stack: %w", err)
	}
	a.log.Debug("cluster stack synthesized", zap.Int("resources", len(t.Resources)))
	return t, nil
}
