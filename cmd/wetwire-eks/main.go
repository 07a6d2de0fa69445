// Command wetwire-eks synthesizes the Kubernetes manifests and CloudFormation
// stacks that deploy a containerized web application onto EKS Fargate.
//
// Usage:
//
//	wetwire-eks synth                 Write Deployment, Service, HPA and Ingress manifests
//	wetwire-eks stack                 Print the cluster CloudFormation template
//	wetwire-eks pipeline              Print the delivery pipeline template
//	wetwire-eks dns --apply           Alias the record name to the ingress address
//	wetwire-eks version               Show version
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/config"
	"github.com/lex00/wetwire-eks-go/internal/logger"
)

// app carries the state shared by every subcommand.
type app struct {
	contextFile string
	envFiles    []string
	logLevel    string
	logFormat   string
	log         *zap.Logger
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	a := &app{log: zap.NewNop()}

	rootCmd := &cobra.Command{
		Use:   "wetwire-eks",
		Short: "Synthesize EKS deployment manifests and stacks",
		Long: `wetwire-eks composes the Kubernetes manifests for a web application
(Deployment, Service, HorizontalPodAutoscaler and an ALB Ingress) and the
CloudFormation stacks for its Fargate cluster and delivery pipeline.

Configuration comes from the environment, optional dotenv files and an
optional context file:

    ACCOUNT=123456789012 REGION=us-east-1 NAMESPACE=default \
        wetwire-eks synth --context cdk.json`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			log, err := logger.New(a.logLevel, a.logFormat)
			if err != nil {
				return err
			}
			a.log = log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = a.log.Sync()
		},
	}

	rootCmd.PersistentFlags().StringVar(&a.contextFile, "context", "", "Context file (JSON or YAML with a top-level \"context\" object)")
	rootCmd.PersistentFlags().StringSliceVar(&a.envFiles, "env-file", nil, "Dotenv file with configuration variables (repeatable)")
	rootCmd.PersistentFlags().StringVar(&a.logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&a.logFormat, "log-format", "console", "Log format: console or json")

	rootCmd.AddCommand(
		newSynthCmd(a),
		newListCmd(a),
		newStackCmd(a),
		newPipelineCmd(a),
		newGraphCmd(a),
		newDiffCmd(a),
		newValidateCmd(a),
		newDNSCmd(a),
		newWatchCmd(a),
		newVersionCmd(),
	)

	return rootCmd
}

// loadConfig reads and validates the configuration. Log flags given on the
// command line override LOG_LEVEL and LOG_FORMAT; the logger is rebuilt when
// the environment selects a different level or format.
func (a *app) loadConfig(cmd *cobra.Command) (*config.Config, error) {
	overrides := make(map[string]any)
	if f := cmd.Flags().Lookup("log-level"); f != nil && f.Changed {
		overrides[config.KeyLogLevel] = a.logLevel
	}
	if f := cmd.Flags().Lookup("log-format"); f != nil && f.Changed {
		overrides[config.KeyLogFormat] = a.logFormat
	}

	cfg, err := config.Load(config.Options{
		ContextFile: a.contextFile,
		EnvFiles:    a.envFiles,
		Overrides:   overrides,
	})
	if err != nil {
		return nil, err
	}

	if cfg.LogLevel != a.logLevel || cfg.LogFormat != a.logFormat {
		log, err := logger.New(cfg.LogLevel, cfg.LogFormat)
		if err != nil {
			return nil, err
		}
		a.log = log
		a.logLevel, a.logFormat = cfg.LogLevel, cfg.LogFormat
	}
	a.log.Debug("configuration loaded",
		zap.String("account", cfg.Account),
		zap.String("region", cfg.Region),
		zap.String("namespace", cfg.Namespace),
		zap.String("topology", string(cfg.Topology)))
	return cfg, nil
}

// loadPlan loads the configuration and composes the deployment plan.
func (a *app) loadPlan(cmd *cobra.Command) (*config.Config, *composer.Plan, error) {
	cfg, err := a.loadConfig(cmd)
	if err != nil {
		return nil, nil, err
	}
	plan, err := composer.NewPlan(cfg.Deployment())
	if err != nil {
		return nil, nil, err
	}
	return cfg, plan, nil
}
