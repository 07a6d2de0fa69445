// Package pipeline synthesizes the CloudFormation template for the delivery
// pipeline: CodeCommit source, a CodeBuild synth step and a CloudFormation
// deploy stage for the cluster stack.
package pipeline

import (
	"errors"
	"fmt"

	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"

	wetwire "github.com/lex00/wetwire-eks-go"
	"github.com/lex00/wetwire-eks-go/internal/template"
	"github.com/lex00/wetwire-eks-go/intrinsics"
)

const (
	DefaultBranch    = "main"
	DefaultStageName = "QA"
	DefaultImage     = "aws/codebuild/standard:7.0"

	// Logical IDs.
	ArtifactBucket = "ArtifactBucket"
	BuildRole      = "BuildRole"
	SynthProject   = "SynthProject"
	DeployRole     = "DeployRole"
	PipelineRole   = "PipelineRole"
	Pipeline       = "Pipeline"

	// ClusterTemplateFile is the synth output deployed by the deploy stage.
	ClusterTemplateFile = "cluster.template.json"

	sourceArtifact = "Source"
	synthArtifact  = "Synth"
	outputDir      = "dist"
)

// DefaultInstallCommands build the CLI inside the synth step.
var DefaultInstallCommands = []string{
	"go build -o bin/wetwire-eks ./cmd/wetwire-eks",
}

// DefaultCommands synthesize the manifests and the cluster stack.
var DefaultCommands = []string{
	"bin/wetwire-eks synth --output " + outputDir + " --layout folder",
	"bin/wetwire-eks stack --format json > " + outputDir + "/" + ClusterTemplateFile,
}

// Options configures the pipeline stack.
type Options struct {
	AppName string
	Account string
	Region  string
	// Branch is the tracked CodeCommit branch.
	Branch string
	// StageName names the deploy stage.
	StageName       string
	InstallCommands []string
	Commands        []string
	// Env is passed to the synth step in addition to ACCOUNT and REGION.
	Env map[string]string
}

func (o Options) withDefaults() Options {
	if o.Branch == "" {
		o.Branch = DefaultBranch
	}
	if o.StageName == "" {
		o.StageName = DefaultStageName
	}
	if len(o.InstallCommands) == 0 {
		o.InstallCommands = DefaultInstallCommands
	}
	if len(o.Commands) == 0 {
		o.Commands = DefaultCommands
	}
	return o
}

func (o Options) validate() error {
	var errs error
	if o.AppName == "" {
		errs = multierr.Append(errs, errors.New("pipeline: app name is required"))
	}
	if o.Account == "" {
		errs = multierr.Append(errs, errors.New("pipeline: account is required"))
	}
	if o.Region == "" {
		errs = multierr.Append(errs, errors.New("pipeline: region is required"))
	}
	return errs
}

// RepositoryARN is the CodeCommit repository holding the application.
func (o Options) RepositoryARN() string {
	return fmt.Sprintf("arn:aws:codecommit:%s:%s:%s", o.Region, o.Account, o.AppName)
}

// Build declares every pipeline resource on a template builder.
func Build(opts Options) (*template.Builder, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}
	opts = opts.withDefaults()

	spec, err := BuildSpec(opts)
	if err != nil {
		return nil, err
	}

	b := template.NewBuilder(fmt.Sprintf("Delivery pipeline for %s", opts.AppName))
	artifactArn := intrinsics.GetAtt{LogicalName: ArtifactBucket, Attribute: "Arn"}
	artifactObjects := intrinsics.Sub{String: "${" + ArtifactBucket + ".Arn}/*"}

	resources := []template.Resource{
		{
			Name: ArtifactBucket,
			Type: "AWS::S3::Bucket",
			Properties: bucketProps{
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
			},
		},
		{
			Name: BuildRole,
			Type: "AWS::IAM::Role",
			Properties: roleProps{
				AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(
					intrinsics.AssumeRoleStatement(intrinsics.ServicePrincipal{"codebuild.amazonaws.com"})),
				Policies: []inlinePolicy{{
					PolicyName: "synth",
					PolicyDocument: intrinsics.NewPolicyDocument(
						allow([]any{"logs:CreateLogGroup", "logs:CreateLogStream", "logs:PutLogEvents"}, "*"),
						allow([]any{"s3:GetObject", "s3:PutObject"}, artifactObjects),
					),
				}},
			},
		},
		{
			Name: SynthProject,
			Type: "AWS::CodeBuild::Project",
			Properties: projectProps{
				Name:        opts.AppName + "-synth",
				ServiceRole: intrinsics.GetAtt{LogicalName: BuildRole, Attribute: "Arn"},
				Source:      projectSource{Type: "CODEPIPELINE", BuildSpec: spec},
				Artifacts:   projectArtifacts{Type: "CODEPIPELINE"},
				Environment: projectEnvironment{
					Type:                 "LINUX_CONTAINER",
					ComputeType:          "BUILD_GENERAL1_SMALL",
					Image:                DefaultImage,
					EnvironmentVariables: environment(opts),
				},
			},
		},
		{
			Name: DeployRole,
			Type: "AWS::IAM::Role",
			Properties: roleProps{
				AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(
					intrinsics.AssumeRoleStatement(intrinsics.ServicePrincipal{"cloudformation.amazonaws.com"})),
				ManagedPolicyArns: []any{intrinsics.ManagedPolicy("AdministratorAccess")},
			},
		},
		{
			Name: PipelineRole,
			Type: "AWS::IAM::Role",
			Properties: roleProps{
				AssumeRolePolicyDocument: intrinsics.NewPolicyDocument(
					intrinsics.AssumeRoleStatement(intrinsics.ServicePrincipal{"codepipeline.amazonaws.com"})),
				Policies: []inlinePolicy{{
					PolicyName: "pipeline",
					PolicyDocument: intrinsics.NewPolicyDocument(
						allow([]any{"s3:GetObject", "s3:GetObjectVersion", "s3:PutObject", "s3:GetBucketVersioning"},
							[]any{artifactArn, artifactObjects}),
						allow([]any{"codecommit:GetBranch", "codecommit:GetCommit", "codecommit:UploadArchive",
							"codecommit:GetUploadArchiveStatus"}, opts.RepositoryARN()),
						allow([]any{"codebuild:StartBuild", "codebuild:BatchGetBuilds"},
							intrinsics.GetAtt{LogicalName: SynthProject, Attribute: "Arn"}),
						allow([]any{"cloudformation:*"}, "*"),
						allow([]any{"iam:PassRole"}, intrinsics.GetAtt{LogicalName: DeployRole, Attribute: "Arn"}),
					),
				}},
			},
		},
		{
			Name: Pipeline,
			Type: "AWS::CodePipeline::Pipeline",
			Properties: pipelineProps{
				Name:          opts.AppName + "-pipeline",
				RoleArn:       intrinsics.GetAtt{LogicalName: PipelineRole, Attribute: "Arn"},
				ArtifactStore: artifactStore{Type: "S3", Location: intrinsics.Ref{LogicalName: ArtifactBucket}},
				Stages:        stages(opts),
			},
		},
	}

	for _, r := range resources {
		if err := b.AddResource(r); err != nil {
			return nil, err
		}
	}

	b.AddOutput("PipelineName", wetwire.Output{
		Description: "CodePipeline name",
		Value:       intrinsics.Ref{LogicalName: Pipeline},
	})
	b.AddOutput("RepositoryArn", wetwire.Output{
		Description: "Source repository",
		Value:       opts.RepositoryARN(),
	})

	return b, nil
}

// Synthesize builds the pipeline stack template.
func Synthesize(opts Options) (*wetwire.Template, error) {
	b, err := Build(opts)
	if err != nil {
		return nil, err
	}
	return b.Build()
}

func stages(opts Options) []stage {
	source := action{
		Name:            "CodeCommit",
		ActionTypeID:    actionType{Category: "Source", Owner: "AWS", Provider: "CodeCommit", Version: "1"},
		Configuration:   map[string]any{"RepositoryName": opts.AppName, "BranchName": opts.Branch},
		OutputArtifacts: []artifact{{Name: sourceArtifact}},
		RunOrder:        1,
	}
	synth := action{
		Name:            "Synth",
		ActionTypeID:    actionType{Category: "Build", Owner: "AWS", Provider: "CodeBuild", Version: "1"},
		Configuration:   map[string]any{"ProjectName": intrinsics.Ref{LogicalName: SynthProject}},
		InputArtifacts:  []artifact{{Name: sourceArtifact}},
		OutputArtifacts: []artifact{{Name: synthArtifact}},
		RunOrder:        1,
	}
	deploy := action{
		Name:           "DeployCluster",
		ActionTypeID:   actionType{Category: "Deploy", Owner: "AWS", Provider: "CloudFormation", Version: "1"},
		InputArtifacts: []artifact{{Name: synthArtifact}},
		RunOrder:       1,
		Configuration: map[string]any{
			"ActionMode":   "CREATE_UPDATE",
			"StackName":    opts.AppName + "-app-stack",
			"TemplatePath": synthArtifact + "::" + ClusterTemplateFile,
			"Capabilities": "CAPABILITY_IAM,CAPABILITY_NAMED_IAM",
			"RoleArn":      intrinsics.GetAtt{LogicalName: DeployRole, Attribute: "Arn"},
		},
	}

	return []stage{
		{Name: "Source", Actions: []action{source}},
		{Name: "Synth", Actions: []action{synth}},
		{Name: opts.StageName, Actions: []action{deploy}},
	}
}

func environment(opts Options) []environmentVariable {
	vars := []environmentVariable{
		{Name: "ACCOUNT", Value: opts.Account},
		{Name: "REGION", Value: opts.Region},
	}
	for _, name := range sortedKeys(opts.Env) {
		vars = append(vars, environmentVariable{Name: name, Value: opts.Env[name]})
	}
	return vars
}

func allow(actions []any, resource any) intrinsics.PolicyStatement {
	return intrinsics.PolicyStatement{Effect: "Allow", Action: actions, Resource: resource}
}

// BuildSpec renders the CodeBuild buildspec for the synth step.
func BuildSpec(opts Options) (string, error) {
	opts = opts.withDefaults()
	spec := buildSpec{
		Version: "0.2",
		Phases: map[string]buildPhase{
			"install": {Commands: opts.InstallCommands},
			"build":   {Commands: opts.Commands},
		},
		Artifacts: buildArtifacts{Files: []string{"**/*"}, BaseDirectory: outputDir},
	}
	data, err := yaml.Marshal(spec)
	if err != nil {
		return "", fmt.Errorf("rendering buildspec: %w", err)
	}
	return string(data), nil
}
