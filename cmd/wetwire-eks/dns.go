package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/dns"
	"github.com/lex00/wetwire-eks-go/internal/resolver"
)

type dnsOptions struct {
	kubeconfig string
	address    string
	timeout    time.Duration
	interval   time.Duration
	apply      bool
	format     string
}

func newDNSCmd(a *app) *cobra.Command {
	var opts dnsOptions

	cmd := &cobra.Command{
		Use:   "dns",
		Short: "Bind the record name to the ingress load balancer address",
		Long: `DNS waits for the ingress controller to assign an address to the
Ingress, builds the CNAME binding for the configured hosted zone and record
name, and prints it. With --apply the record is upserted in Route53.

When no hosted zone or record name is configured there is nothing to bind
and the command returns immediately.

Examples:
    wetwire-eks dns
    wetwire-eks dns --apply --timeout 10m
    wetwire-eks dns --address k8s-default-alb-123.us-east-1.elb.amazonaws.com --apply`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runDNS(cmd, cmd.OutOrStdout(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.kubeconfig, "kubeconfig", "", "Path to kubeconfig (default: standard loading rules)")
	cmd.Flags().StringVar(&opts.address, "address", "", "Use this ingress address instead of reading it from the cluster")
	cmd.Flags().DurationVar(&opts.timeout, "timeout", resolver.DefaultTimeout, "How long to wait for the ingress address")
	cmd.Flags().DurationVar(&opts.interval, "interval", resolver.DefaultInterval, "Polling interval")
	cmd.Flags().BoolVar(&opts.apply, "apply", false, "Upsert the record in Route53")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")

	return cmd
}

func (a *app) runDNS(cmd *cobra.Command, w io.Writer, opts dnsOptions) error {
	if opts.format != "text" && opts.format != "json" {
		return fmt.Errorf("unknown format: %s", opts.format)
	}
	if opts.timeout <= 0 {
		return fmt.Errorf("--timeout must be positive, got %s", opts.timeout)
	}
	if opts.interval <= 0 {
		return fmt.Errorf("--interval must be positive, got %s", opts.interval)
	}

	_, plan, err := a.loadPlan(cmd)
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	result, binding, err := a.resolveDNS(ctx, plan, opts)
	if err != nil {
		return err
	}

	if opts.apply && binding != nil {
		client, err := dns.NewClient(plan.Params.Region)
		if err != nil {
			return err
		}
		changeID, err := dns.NewPublisher(client, a.log).Publish(ctx, binding)
		if err != nil {
			return err
		}
		result.Applied = true
		result.ChangeID = changeID
	}

	if opts.format == "json" {
		if err := writeJSON(w, result); err != nil {
			return err
		}
	} else {
		writeDNSText(w, result)
	}

	if !result.Ready {
		return fmt.Errorf("ingress %s/%s has no address yet", plan.Ingress.Namespace, plan.Ingress.Name)
	}
	return nil
}

// resolveDNS returns the binding for the ingress address. The cluster is
// only contacted when a hosted zone and record are configured and no
// address was given.
func (a *app) resolveDNS(ctx context.Context, plan *composer.Plan, opts dnsOptions) (wetwire.DNSResult, *composer.DNSBinding, error) {
	result := wetwire.DNSResult{
		Configured: plan.Params.HostedZoneID != "" && plan.Params.RecordName != "",
	}
	if !result.Configured {
		result.Ready = true
		a.log.Info("no hosted zone and record configured, nothing to bind")
		return result, nil, nil
	}

	address := opts.address
	if address == "" {
		client, err := resolver.NewClient(opts.kubeconfig)
		if err != nil {
			return result, nil, err
		}
		r := resolver.New(client,
			resolver.WithTimeout(opts.timeout),
			resolver.WithInterval(opts.interval),
			resolver.WithLogger(a.log))
		address, err = r.Wait(ctx, plan.Ingress.Namespace, plan.Ingress.Name)
		if err != nil && !errors.Is(err, resolver.ErrNotReady) {
			return result, nil, err
		}
	}

	binding, ready := composer.BuildDNSBinding(address, plan.Params)
	result.Ready = ready
	if binding != nil {
		result.Address = binding.Target
		result.ZoneID = binding.HostedZoneID
		result.RecordName = binding.RecordName
		result.Type = binding.Type
	} else {
		a.log.Warn("ingress address not assigned yet",
			zap.String("namespace", plan.Ingress.Namespace),
			zap.String("ingress", plan.Ingress.Name))
	}
	return result, binding, nil
}

func writeDNSText(w io.Writer, r wetwire.DNSResult) {
	switch {
	case !r.Configured:
		fmt.Fprintln(w, "No hosted zone and record configured.")
	case !r.Ready:
		fmt.Fprintln(w, "Ingress address not assigned yet.")
	default:
		fmt.Fprintf(w, "%s %s -> %s (zone %s)\n", r.Type, r.RecordName, r.Address, r.ZoneID)
		if r.Applied {
			fmt.Fprintf(w, "Applied: %s\n", r.ChangeID)
		}
	}
}
