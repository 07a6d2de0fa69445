package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/multierr"
	"gopkg.in/yaml.v3"
)

func testOptions() Options {
	return Options{AppName: "cdk8s-samples", Account: "123456789012", Region: "us-east-1"}
}

func TestSynthesize_Resources(t *testing.T) {
	tmpl, err := Synthesize(testOptions())
	require.NoError(t, err)

	want := map[string]string{
		ArtifactBucket: "AWS::S3::Bucket",
		BuildRole:      "AWS::IAM::Role",
		SynthProject:   "AWS::CodeBuild::Project",
		DeployRole:     "AWS::IAM::Role",
		PipelineRole:   "AWS::IAM::Role",
		Pipeline:       "AWS::CodePipeline::Pipeline",
	}
	require.Len(t, tmpl.Resources, len(want))
	for name, typ := range want {
		assert.Equal(t, typ, tmpl.Resources[name].Type, name)
	}
	assert.Equal(t, "cdk8s-samples-pipeline", tmpl.Resources[Pipeline].Properties["Name"])
	assert.Equal(t, "arn:aws:codecommit:us-east-1:123456789012:cdk8s-samples", tmpl.Outputs["RepositoryArn"].Value)
}

func TestSynthesize_Stages(t *testing.T) {
	tmpl, err := Synthesize(testOptions())
	require.NoError(t, err)

	stages := tmpl.Resources[Pipeline].Properties["Stages"].([]any)
	require.Len(t, stages, 3)

	names := make([]string, 0, len(stages))
	for _, s := range stages {
		names = append(names, s.(map[string]any)["Name"].(string))
	}
	assert.Equal(t, []string{"Source", "Synth", "QA"}, names)

	source := stages[0].(map[string]any)["Actions"].([]any)[0].(map[string]any)
	config := source["Configuration"].(map[string]any)
	assert.Equal(t, "cdk8s-samples", config["RepositoryName"])
	assert.Equal(t, "main", config["BranchName"])

	synth := stages[1].(map[string]any)["Actions"].([]any)[0].(map[string]any)
	assert.Equal(t, map[string]any{"Ref": "SynthProject"}, synth["Configuration"].(map[string]any)["ProjectName"])

	deploy := stages[2].(map[string]any)["Actions"].([]any)[0].(map[string]any)
	assert.Equal(t, "Synth::cluster.template.json", deploy["Configuration"].(map[string]any)["TemplatePath"])
}

func TestSynthesize_SynthEnvironment(t *testing.T) {
	opts := testOptions()
	opts.Env = map[string]string{"NAMESPACE": "default", "CERTIFICATE": "abc"}

	tmpl, err := Synthesize(opts)
	require.NoError(t, err)

	env := tmpl.Resources[SynthProject].Properties["Environment"].(map[string]any)
	vars := env["EnvironmentVariables"].([]any)
	var names []string
	for _, v := range vars {
		names = append(names, v.(map[string]any)["Name"].(string))
	}
	assert.Equal(t, []string{"ACCOUNT", "REGION", "CERTIFICATE", "NAMESPACE"}, names)
}

func TestBuild_Order(t *testing.T) {
	b, err := Build(testOptions())
	require.NoError(t, err)

	order, err := b.Resources()
	require.NoError(t, err)
	assert.Equal(t, Pipeline, order[len(order)-1])
}

func TestBuild_RequiresIdentity(t *testing.T) {
	_, err := Build(Options{})
	require.Error(t, err)
	assert.Len(t, multierr.Errors(err), 3)
}

func TestBuildSpec(t *testing.T) {
	opts := testOptions()
	opts.Commands = []string{"make synth"}

	spec, err := BuildSpec(opts)
	require.NoError(t, err)

	var parsed map[string]any
	require.NoError(t, yaml.Unmarshal([]byte(spec), &parsed))
	assert.Equal(t, "0.2", parsed["version"])

	phases := parsed["phases"].(map[string]any)
	build := phases["build"].(map[string]any)
	assert.Equal(t, []any{"make synth"}, build["commands"])

	install := phases["install"].(map[string]any)
	assert.Equal(t, []any{DefaultInstallCommands[0]}, install["commands"])
}
