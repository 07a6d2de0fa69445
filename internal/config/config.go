// Package config loads and validates the deployment configuration from the
// environment and an optional CDK-style context file. It is the only place
// the process environment is read.
package config

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/spf13/viper"
	"go.uber.org/multierr"

	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/pipeline"
	"github.com/lex00/wetwire-eks-go/internal/stack"
)

// Keys understood by Load. Environment variables are the upper-cased key.
const (
	KeyAccount              = "account"
	KeyRegion               = "region"
	KeyNamespace            = "namespace"
	KeyCertificate          = "certificate"
	KeyAccessLogsBucket     = "alb_access_logs_bucket_name"
	KeyAccessLogsPrefix     = "alb_access_logs_prefix"
	KeyHostedZoneID         = "hosted_zone_id"
	KeyHostedZoneName       = "hosted_zone_name"
	KeyRecord               = "record"
	KeyAppName              = "app_name"
	KeyTopology             = "topology"
	KeyImage                = "image"
	KeyAdminUsers           = "admin_users"
	KeyAdminRoles           = "admin_roles"
	KeyElbAccountID         = "elb_account_id"
	KeyKubernetesVersion    = "kubernetes_version"
	KeyDeploymentName       = "deployment_name"
	KeyServiceName          = "service_name"
	KeyIngressName          = "ingress_name"
	KeyMinReplicas          = "min_replicas"
	KeyMaxReplicas          = "max_replicas"
	KeyTargetCPUUtilization = "target_cpu_utilization"
	KeyPublishedPort        = "published_port"
	KeyLogLevel             = "log_level"
	KeyLogFormat            = "log_format"
)

// contextKeys maps context file entries to configuration keys.
var contextKeys = map[string]string{
	"account":              KeyAccount,
	"region":               KeyRegion,
	"namespace":            KeyNamespace,
	"certificate":          KeyCertificate,
	"albAccessLogsBucket":  KeyAccessLogsBucket,
	"albAccessLogsPrefix":  KeyAccessLogsPrefix,
	"hostedZoneId":         KeyHostedZoneID,
	"hostedZoneName":       KeyHostedZoneName,
	"recordName":           KeyRecord,
	"appName":              KeyAppName,
	"topology":             KeyTopology,
	"image":                KeyImage,
	"adminUsers":           KeyAdminUsers,
	"adminRoles":           KeyAdminRoles,
	"elbAccountId":         KeyElbAccountID,
	"kubernetesVersion":    KeyKubernetesVersion,
	"deploymentName":       KeyDeploymentName,
	"serviceName":          KeyServiceName,
	"ingressName":          KeyIngressName,
	"minReplicas":          KeyMinReplicas,
	"maxReplicas":          KeyMaxReplicas,
	"targetCpuUtilization": KeyTargetCPUUtilization,
	"publishedPort":        KeyPublishedPort,
}

var (
	accountPattern = regexp.MustCompile(`^[0-9]{12}$`)
	regionPattern  = regexp.MustCompile(`^[a-z]{2}(-[a-z]+)+-[0-9]$`)
)

// Options controls where configuration is read from.
type Options struct {
	// ContextFile is a JSON or YAML file with a top-level "context" object.
	ContextFile string
	// EnvFiles are dotenv files using the same keys as the environment.
	// They override the context file, later files override earlier ones, and
	// the process environment overrides them all.
	EnvFiles []string
	// Overrides take precedence over the environment and the context file.
	Overrides map[string]any
}

// Config is the validated configuration.
type Config struct {
	Account     string
	Region      string
	Namespace   string
	Certificate string

	AlbAccessLogsBucketName string
	AlbAccessLogsPrefix     string

	HostedZoneID   string
	HostedZoneName string
	RecordName     string

	AppName           string
	ElbAccountID      string
	KubernetesVersion string
	AdminUsers        []string
	AdminRoles        []string

	Topology      composer.Topology
	Image         string
	Names         composer.Names
	Scaling       composer.ScalingBounds
	PublishedPort int32

	LogLevel  string
	LogFormat string
}

// Load reads the configuration and validates it once. All violations are
// returned together; each is a *composer.ConfigurationError.
func Load(opts Options) (*Config, error) {
	v, err := newViper(opts)
	if err != nil {
		return nil, err
	}

	var errs error
	intValue := func(key string, def int32) int32 {
		raw := strings.TrimSpace(v.GetString(key))
		if raw == "" {
			return def
		}
		n, err := strconv.ParseInt(raw, 10, 32)
		if err != nil {
			errs = multierr.Append(errs, &composer.ConfigurationError{Field: key, Reason: fmt.Sprintf("%q is not an integer", raw)})
			return def
		}
		return int32(n)
	}

	cfg := &Config{
		Account:                 str(v, KeyAccount),
		Region:                  str(v, KeyRegion),
		Namespace:               str(v, KeyNamespace),
		AlbAccessLogsBucketName: str(v, KeyAccessLogsBucket),
		AlbAccessLogsPrefix:     str(v, KeyAccessLogsPrefix),
		HostedZoneID:            str(v, KeyHostedZoneID),
		HostedZoneName:          str(v, KeyHostedZoneName),
		RecordName:              str(v, KeyRecord),
		AppName:                 str(v, KeyAppName),
		ElbAccountID:            str(v, KeyElbAccountID),
		KubernetesVersion:       str(v, KeyKubernetesVersion),
		AdminUsers:              list(v.Get(KeyAdminUsers)),
		AdminRoles:              list(v.Get(KeyAdminRoles)),
		Topology:                composer.Topology(str(v, KeyTopology)),
		Image:                   str(v, KeyImage),
		Names: composer.Names{
			Deployment: str(v, KeyDeploymentName),
			Service:    str(v, KeyServiceName),
			Ingress:    str(v, KeyIngressName),
		},
		Scaling: composer.ScalingBounds{
			MinReplicas:          intValue(KeyMinReplicas, composer.DefaultMinReplicas),
			MaxReplicas:          intValue(KeyMaxReplicas, composer.DefaultMaxReplicas),
			TargetCPUUtilization: intValue(KeyTargetCPUUtilization, composer.DefaultTargetCPUUtilization),
		},
		PublishedPort: intValue(KeyPublishedPort, composer.DefaultPublishedPort),
		LogLevel:      strings.ToLower(str(v, KeyLogLevel)),
		LogFormat:     strings.ToLower(str(v, KeyLogFormat)),
	}
	cfg.Certificate = CertificateARN(cfg.Region, cfg.Account, str(v, KeyCertificate))

	if err := multierr.Append(errs, cfg.Validate()); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newViper(opts Options) (*viper.Viper, error) {
	v := viper.New()
	v.SetDefault(KeyAppName, stack.DefaultAppName)
	v.SetDefault(KeyTopology, string(composer.TopologySingle))
	v.SetDefault(KeyKubernetesVersion, stack.DefaultKubernetesVersion)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")

	if opts.ContextFile != "" {
		file := viper.New()
		file.SetConfigFile(opts.ContextFile)
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading context file %s: %w", opts.ContextFile, err)
		}
		for ctxKey, key := range contextKeys {
			if val := file.Get("context." + ctxKey); val != nil {
				v.SetDefault(key, val)
			}
		}
	}

	for _, path := range opts.EnvFiles {
		file := viper.New()
		file.SetConfigFile(path)
		file.SetConfigType("env")
		if err := file.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading env file %s: %w", path, err)
		}
		for _, key := range file.AllKeys() {
			v.SetDefault(key, file.Get(key))
		}
	}

	v.AutomaticEnv()
	for key, val := range opts.Overrides {
		v.Set(key, val)
	}
	return v, nil
}

// Validate checks every field and returns all violations combined.
func (c *Config) Validate() error {
	var errs error
	fail := func(field, format string, args ...any) {
		errs = multierr.Append(errs, &composer.ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)})
	}

	switch {
	case c.Account == "":
		fail(KeyAccount, "ACCOUNT is required")
	case !accountPattern.MatchString(c.Account):
		fail(KeyAccount, "%q is not a 12-digit AWS account id", c.Account)
	}
	switch {
	case c.Region == "":
		fail(KeyRegion, "REGION is required")
	case !regionPattern.MatchString(c.Region):
		fail(KeyRegion, "%q is not an AWS region", c.Region)
	}
	if c.ElbAccountID != "" && !accountPattern.MatchString(c.ElbAccountID) {
		fail(KeyElbAccountID, "%q is not a 12-digit AWS account id", c.ElbAccountID)
	}

	switch c.Topology {
	case composer.TopologySingle, composer.TopologyMulti:
	default:
		fail(KeyTopology, "%q must be %q or %q", c.Topology, composer.TopologySingle, composer.TopologyMulti)
	}
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		fail(KeyLogLevel, "%q must be debug, info, warn or error", c.LogLevel)
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		fail(KeyLogFormat, "%q must be json or console", c.LogFormat)
	}

	// Namespace, names, DNS and bucket rules live with the composer.
	errs = multierr.Append(errs, composer.ValidateParameters(c.Deployment()))
	return errs
}

// Deployment returns the composer input. Downstream code receives only this
// value and never reads the environment.
func (c *Config) Deployment() composer.DeploymentParameters {
	return composer.DeploymentParameters{
		Account:                 c.Account,
		Region:                  c.Region,
		Namespace:               c.Namespace,
		Certificate:             c.Certificate,
		AlbAccessLogsBucketName: c.AlbAccessLogsBucketName,
		AlbAccessLogsPrefix:     c.AlbAccessLogsPrefix,
		HostedZoneID:            c.HostedZoneID,
		HostedZoneName:          c.HostedZoneName,
		RecordName:              c.RecordName,
		AdminUsers:              append([]string(nil), c.AdminUsers...),
		AdminRoles:              append([]string(nil), c.AdminRoles...),
		Topology:                c.Topology,
		Image:                   c.Image,
		Names:                   c.Names,
		Scaling:                 c.Scaling,
		PublishedPort:           c.PublishedPort,
	}
}

// StackOptions returns the cluster stack options.
func (c *Config) StackOptions() stack.Options {
	return stack.Options{
		AppName:           c.AppName,
		KubernetesVersion: c.KubernetesVersion,
		ElbAccountID:      c.ElbAccountID,
	}
}

// PipelineOptions returns the pipeline stack options. The synth step gets
// the same deployment environment this configuration was loaded from.
func (c *Config) PipelineOptions() pipeline.Options {
	env := map[string]string{"NAMESPACE": c.Namespace}
	for key, val := range map[string]string{
		"CERTIFICATE":                 c.Certificate,
		"ALB_ACCESS_LOGS_BUCKET_NAME": c.AlbAccessLogsBucketName,
		"HOSTED_ZONE_ID":              c.HostedZoneID,
		"HOSTED_ZONE_NAME":            c.HostedZoneName,
		"RECORD":                      c.RecordName,
		"TOPOLOGY":                    string(c.Topology),
	} {
		if val != "" {
			env[key] = val
		}
	}
	return pipeline.Options{
		AppName: c.AppName,
		Account: c.Account,
		Region:  c.Region,
		Env:     env,
	}
}

// CertificateARN expands a bare ACM certificate id into its ARN. Values that
// are already ARNs, and empty values, are returned unchanged.
func CertificateARN(region, account, certificate string) string {
	certificate = strings.TrimSpace(certificate)
	if certificate == "" || strings.HasPrefix(certificate, "arn:") || region == "" || account == "" {
		return certificate
	}
	return fmt.Sprintf("arn:aws:acm:%s:%s:certificate/%s", region, account, certificate)
}

func str(v *viper.Viper, key string) string {
	return strings.TrimSpace(v.GetString(key))
}

// list accepts a YAML/JSON list or a comma-separated string.
func list(val any) []string {
	var raw []string
	switch t := val.(type) {
	case nil:
		return nil
	case string:
		raw = strings.Split(t, ",")
	case []string:
		raw = t
	case []any:
		for _, item := range t {
			raw = append(raw, fmt.Sprint(item))
		}
	default:
		raw = []string{fmt.Sprint(t)}
	}

	var out []string
	for _, item := range raw {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
