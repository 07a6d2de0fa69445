// Package stack synthesizes the CloudFormation template for the EKS Fargate
// cluster that hosts the composed workload.
package stack

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/template"
	"github.com/lex00/wetwire-eks-go/intrinsics"
)

const (
	DefaultAppName           = "cdk8s-samples"
	DefaultKubernetesVersion = "1.26"

	// Logical IDs.
	SubnetIdsParameter  = "SubnetIds"
	ClusterRole         = "ClusterRole"
	PodExecutionRole    = "PodExecutionRole"
	Cluster             = "Cluster"
	FargateProfile      = "FargateProfile"
	AlbLogsBucket       = "AlbLogsBucket"
	AlbLogsBucketPolicy = "AlbLogsBucketPolicy"
	DNSRecord           = "DNSRecord"

	systemNamespace  = "kube-system"
	authModeAPI      = "API_AND_CONFIG_MAP"
	accessEntryType  = "STANDARD"
	logRetentionDays = 90
)

// Options configures the cluster stack beyond the composed plan.
type Options struct {
	// AppName names the cluster and prefixes exports.
	AppName           string
	KubernetesVersion string
	// ElbAccountID is the regional Elastic Load Balancing account allowed to
	// write access logs. When empty it is looked up from the region.
	ElbAccountID string
	// DNS is the resolved binding to publish as a record set, if any.
	DNS *composer.DNSBinding
}

func (o Options) withDefaults() Options {
	if o.AppName == "" {
		o.AppName = DefaultAppName
	}
	if o.KubernetesVersion == "" {
		o.KubernetesVersion = DefaultKubernetesVersion
	}
	return o
}

// Build declares every cluster stack resource for plan on a template builder.
func Build(plan *composer.Plan, opts Options) (*template.Builder, error) {
	if plan == nil {
		return nil, fmt.Errorf("stack: plan is required")
	}
	opts = opts.withDefaults()
	p := plan.Params

	b := template.NewBuilder(fmt.Sprintf("EKS Fargate cluster for %s", opts.AppName))
	b.AddParameter(SubnetIdsParameter, wetwire.Parameter{
		Type:        "List<AWS::EC2::Subnet::Id>",
		Description: "Private subnets for the cluster and its Fargate pods",
	})

	appTags := []tag{{Key: "Application", Value: opts.AppName}}
	clusterRef := intrinsics.Ref{LogicalName: Cluster}
	subnets := intrinsics.Ref{LogicalName: SubnetIdsParameter}

	resources := []template.Resource{
		{
			Name: ClusterRole,
			Type: "AWS::IAM::Role",
			Properties: roleProps{
				AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(
					intrinsics.AssumeRoleStatement(intrinsics.ServicePrincipal{"eks.amazonaws.com"})),
				ManagedPolicyArns: []any{intrinsics.ManagedPolicy("AmazonEKSClusterPolicy")},
				Tags:              appTags,
			},
		},
		{
			Name: PodExecutionRole,
			Type: "AWS::IAM::Role",
			Properties: roleProps{
				AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(
					intrinsics.AssumeRoleStatement(intrinsics.ServicePrincipal{"eks-fargate-pods.amazonaws.com"})),
				ManagedPolicyArns: []any{intrinsics.ManagedPolicy("AmazonEKSFargatePodExecutionRolePolicy")},
				Tags:              appTags,
			},
		},
		{
			Name: Cluster,
			Type: "AWS::EKS::Cluster",
			Properties: clusterProps{
				Name:    opts.AppName,
				Version: opts.KubernetesVersion,
				RoleArn: intrinsics.GetAtt{LogicalName: ClusterRole, Attribute: "Arn"},
				ResourcesVpcConfig: vpcConfig{
					SubnetIds:             subnets,
					EndpointPublicAccess:  true,
					EndpointPrivateAccess: true,
				},
				AccessConfig: &accessConfig{
					AuthenticationMode:                      authModeAPI,
					BootstrapClusterCreatorAdminPermissions: true,
				},
				Tags: appTags,
			},
		},
		{
			Name: FargateProfile,
			Type: "AWS::EKS::FargateProfile",
			Properties: fargateProfileProps{
				ClusterName:         clusterRef,
				FargateProfileName:  "default",
				PodExecutionRoleArn: intrinsics.GetAtt{LogicalName: PodExecutionRole, Attribute: "Arn"},
				Subnets:             subnets,
				Selectors:           fargateSelectors(p.Namespace),
			},
		},
	}

	resources = append(resources, accessEntries(plan.Admins, clusterRef)...)

	if p.AlbAccessLogsBucketName != "" {
		logs, err := accessLogResources(p, opts)
		if err != nil {
			return nil, err
		}
		resources = append(resources, logs...)
	}

	if opts.DNS != nil {
		resources = append(resources, template.Resource{
			Name: DNSRecord,
			Type: "AWS::Route53::RecordSet",
			Properties: recordSetProps{
				HostedZoneID:    opts.DNS.HostedZoneID,
				Name:            opts.DNS.RecordName,
				Type:            opts.DNS.Type,
				TTL:             strconv.FormatInt(opts.DNS.TTL, 10),
				ResourceRecords: []string{opts.DNS.Target},
			},
		})
	}

	for _, r := range resources {
		if err := b.AddResource(r); err != nil {
			return nil, err
		}
	}

	export := func(suffix string) *wetwire.OutputExport {
		return &wetwire.OutputExport{Name: opts.AppName + "-" + suffix}
	}
	b.AddOutput("ClusterName", wetwire.Output{
		Description: "EKS cluster name",
		Value:       clusterRef,
		Export:      export("ClusterName"),
	})
	b.AddOutput("ClusterArn", wetwire.Output{
		Description: "EKS cluster ARN",
		Value:       intrinsics.GetAtt{LogicalName: Cluster, Attribute: "Arn"},
		Export:      export("ClusterArn"),
	})
	b.AddOutput("ClusterEndpoint", wetwire.Output{
		Description: "Kubernetes API server endpoint",
		Value:       intrinsics.GetAtt{LogicalName: Cluster, Attribute: "Endpoint"},
	})

	return b, nil
}

// Synthesize builds the cluster stack template for plan.
func Synthesize(plan *composer.Plan, opts Options) (*wetwire.Template, error) {
	b, err := Build(plan, opts)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func fargateSelectors(namespace string) []fargateSelector {
	selectors := []fargateSelector{{Namespace: namespace}}
	if namespace != systemNamespace {
		selectors = append(selectors, fargateSelector{Namespace: systemNamespace})
	}
	return selectors
}

func accessEntries(admins []composer.AdminBinding, cluster intrinsics.Ref) []template.Resource {
	used := make(map[string]int)
	out := make([]template.Resource, 0, len(admins))
	for _, a := range admins {
		name := "Admin" + pascal(string(a.Kind)) + pascal(a.Name)
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name += strconv.Itoa(n + 1)
		} else {
			used[name] = 1
		}

		out = append(out, template.Resource{
			Name: name,
			Type: "AWS::EKS::AccessEntry",
			Properties: accessEntryProps{
				ClusterName:  cluster,
				PrincipalArn: a.ARN,
				Type:         accessEntryType,
				AccessPolicies: []accessPolicy{{
					PolicyArn:   a.PolicyARN,
					AccessScope: accessScope{Type: a.Scope},
				}},
			},
		})
	}
	return out
}

func accessLogResources(p composer.DeploymentParameters, opts Options) ([]template.Resource, error) {
	principal, err := logDeliveryPrincipal(p.Region, opts.ElbAccountID)
	if err != nil {
		return nil, err
	}
	prefix := strings.Trim(p.AlbAccessLogsPrefix, "/ ")

	return []template.Resource{
		{
			Name: AlbLogsBucket,
			Type: "AWS::S3::Bucket",
			Properties: bucketProps{
				BucketName: p.AlbAccessLogsBucketName,
				BucketEncryption: &bucketEncryption{
					ServerSideEncryptionConfiguration: []encryptionRule{{
						ServerSideEncryptionByDefault: encryptionDefault{SSEAlgorithm: "AES256"},
					}},
				},
				PublicAccessBlockConfiguration: &publicAccessBlock{
					BlockPublicAcls:       true,
					BlockPublicPolicy:     true,
					IgnorePublicAcls:      true,
					RestrictPublicBuckets: true,
				},
				OwnershipControls: &ownershipControls{
					Rules: []ownershipRule{{ObjectOwnership: "BucketOwnerEnforced"}},
				},
				LifecycleConfiguration: &lifecycleConfiguration{
					Rules: []lifecycleRule{{ID: "expire-access-logs", Status: "Enabled", ExpirationInDays: logRetentionDays}},
				},
			},
		},
		{
			Name: AlbLogsBucketPolicy,
			Type: "AWS::S3::BucketPolicy",
			Properties: bucketPolicyProps{
				Bucket: intrinsics.Ref{LogicalName: AlbLogsBucket},
				PolicyDocument: intrinsics.NewPolicyDocument(intrinsics.PolicyStatement{
					Sid:       "AllowLoadBalancerAccessLogs",
					Effect:    "Allow",
					Principal: principal,
					Action:    []any{"s3:PutObject"},
					Resource:  intrinsics.BucketObjects(AlbLogsBucket, prefix),
				}),
			},
		},
	}, nil
}

// elbAccounts are the Elastic Load Balancing accounts of the regions that
// predate log delivery by service principal.
var elbAccounts = map[string]string{
	"us-east-1":      "127311923021",
	"us-east-2":      "033677994240",
	"us-west-1":      "027434742980",
	"us-west-2":      "797873946194",
	"af-south-1":     "098369216593",
	"ap-east-1":      "754344448648",
	"ap-south-1":     "718504428378",
	"ap-northeast-1": "582318560864",
	"ap-northeast-2": "600734575887",
	"ap-northeast-3": "383597477331",
	"ap-southeast-1": "114774131450",
	"ap-southeast-2": "783225319266",
	"ca-central-1":   "985666609251",
	"eu-central-1":   "054676820928",
	"eu-west-1":      "156460612806",
	"eu-west-2":      "652711504416",
	"eu-west-3":      "009996457667",
	"eu-north-1":     "897822967062",
	"eu-south-1":     "635631232127",
	"me-south-1":     "076674570225",
	"sa-east-1":      "507241528517",
}

// logDeliveryPrincipal returns the principal allowed to write ALB access logs.
func logDeliveryPrincipal(region, elbAccountID string) (any, error) {
	if elbAccountID == "" {
		elbAccountID = elbAccounts[region]
	}
	if elbAccountID != "" {
		if len(elbAccountID) != 12 || strings.Trim(elbAccountID, "0123456789") != "" {
			return nil, fmt.Errorf("stack: invalid ELB account id %q", elbAccountID)
		}
		return intrinsics.AWSPrincipal{fmt.Sprintf("arn:aws:iam::%s:root", elbAccountID)}, nil
	}
	return intrinsics.ServicePrincipal{"logdelivery.elasticloadbalancing.amazonaws.com"}, nil
}

// pascal strips characters that are invalid in logical IDs and upper-cases
// the first letter of each remaining word.
func pascal(s string) string {
	var sb strings.Builder
	upper := true
	for _, r := range s {
		if r > unicode.MaxASCII || !(unicode.IsLetter(r) || unicode.IsDigit(r)) {
			upper = true
			continue
		}
		if upper {
			r = unicode.ToUpper(r)
			upper = false
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
