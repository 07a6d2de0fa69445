package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wetwire "github.com/lex00/wetwire-eks-go"
)

func setDeploymentEnv(t *testing.T) {
	t.Helper()
	t.Setenv("ACCOUNT", "123456789012")
	t.Setenv("REGION", "us-east-1")
	t.Setenv("NAMESPACE", "default")
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, stderr bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&stderr)
	root.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := root.Execute()
	return out.String(), err
}

func TestRootCmd_Commands(t *testing.T) {
	root := newRootCmd()

	want := []string{"synth", "list", "stack", "pipeline", "graph", "diff", "validate", "dns", "watch", "version"}
	for _, name := range want {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}

	for _, flag := range []string{"context", "env-file", "log-level", "log-format"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "missing --%s flag", flag)
	}
}

func TestRootCmd_InvalidLogLevel(t *testing.T) {
	_, err := execute(t, "--log-level", "loud", "version")
	require.Error(t, err)
}

func TestSynth_WritesManifests(t *testing.T) {
	setDeploymentEnv(t)
	dir := t.TempDir()

	out, err := execute(t, "synth", "--output", dir, "--format", "json")
	require.NoError(t, err)

	var result wetwire.SynthResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success)
	require.Len(t, result.Manifests, 4)
	assert.Len(t, result.Files, 4)
	assert.FileExists(t, filepath.Join(dir, "AppChart", "Ingress.my-test-ingress.k8s.yaml"))
}

func TestSynth_FileLayout(t *testing.T) {
	setDeploymentEnv(t)
	dir := t.TempDir()

	out, err := execute(t, "synth", "--output", dir, "--layout", "file", "--chart", "shop")
	require.NoError(t, err)
	assert.Contains(t, out, "Deployment/my-cdk8s-deployment -> ")
	assert.FileExists(t, filepath.Join(dir, "shop.k8s.yaml"))
}

func TestSynth_MissingConfigurationWritesNothing(t *testing.T) {
	t.Setenv("ACCOUNT", "")
	t.Setenv("REGION", "")
	t.Setenv("NAMESPACE", "")
	dir := t.TempDir()

	out, err := execute(t, "synth", "--output", dir, "--format", "json")
	require.Error(t, err)

	var result wetwire.SynthResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.False(t, result.Success)
	assert.GreaterOrEqual(t, len(result.Errors), 3)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSynth_ContextFile(t *testing.T) {
	setDeploymentEnv(t)
	dir := t.TempDir()
	ctxFile := filepath.Join(dir, "cdk.json")
	require.NoError(t, os.WriteFile(ctxFile, []byte(`{"context": {"serviceName": "storefront", "minReplicas": 3}}`), 0o644))

	out, err := execute(t, "--context", ctxFile, "list", "--format", "json")
	require.NoError(t, err)

	var result wetwire.ListResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	require.Len(t, result.Manifests, 4)
	assert.Equal(t, "storefront", result.Manifests[1].Name)
}

func TestList_Text(t *testing.T) {
	setDeploymentEnv(t)

	out, err := execute(t, "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Manifests (4):")
	assert.Contains(t, out, "Cluster: AWS::EKS::Cluster")
}

func TestStack_JSON(t *testing.T) {
	setDeploymentEnv(t)

	out, err := execute(t, "stack")
	require.NoError(t, err)

	var tmpl wetwire.Template
	require.NoError(t, json.Unmarshal([]byte(out), &tmpl))
	assert.Equal(t, "AWS::EKS::Cluster", tmpl.Resources["Cluster"].Type)
	assert.NotContains(t, tmpl.Resources, "DNSRecord")
}

func TestStack_DNSAddress(t *testing.T) {
	setDeploymentEnv(t)
	t.Setenv("HOSTED_ZONE_ID", "mock-zone-id")
	t.Setenv("RECORD", "cdk8s-samples.mydomain.com")

	out, err := execute(t, "stack", "--format", "yaml", "--dns-address", "alb-123.elb.amazonaws.com")
	require.NoError(t, err)
	assert.Contains(t, out, "AWS::Route53::RecordSet")
	assert.Contains(t, out, "alb-123.elb.amazonaws.com")
}

func TestStack_OutputFile(t *testing.T) {
	setDeploymentEnv(t)
	path := filepath.Join(t.TempDir(), "out", "cluster.json")

	out, err := execute(t, "stack", "-o", path)
	require.NoError(t, err)
	assert.Empty(t, out)
	assert.FileExists(t, path)
}

func TestPipeline(t *testing.T) {
	setDeploymentEnv(t)

	out, err := execute(t, "pipeline", "--branch", "release")
	require.NoError(t, err)
	assert.Contains(t, out, "AWS::CodePipeline::Pipeline")
	assert.Contains(t, out, "release")

	out, err = execute(t, "pipeline", "--buildspec")
	require.NoError(t, err)
	assert.Contains(t, out, "wetwire-eks synth")
}

func TestGraph(t *testing.T) {
	setDeploymentEnv(t)

	out, err := execute(t, "graph")
	require.NoError(t, err)
	assert.Contains(t, out, "digraph")
	assert.Contains(t, out, "Ingress/my-test-ingress")

	out, err = execute(t, "graph", "--source", "stack", "-c")
	require.NoError(t, err)
	assert.Contains(t, out, "AWS::EKS::Cluster")

	_, err = execute(t, "graph", "--source", "helm")
	require.Error(t, err)
	_, err = execute(t, "graph", "-f", "png")
	require.Error(t, err)
}

func TestValidate_NoLint(t *testing.T) {
	setDeploymentEnv(t)

	out, err := execute(t, "validate", "--lint=false", "--format", "json")
	require.NoError(t, err)

	var result wetwire.ValidateResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.True(t, result.Success, "errors: %v", result.Errors)
	assert.Equal(t, 4, result.Manifests)
}

func TestValidate_InvalidConfiguration(t *testing.T) {
	setDeploymentEnv(t)
	t.Setenv("NAMESPACE", "Not_A_Namespace")

	out, err := execute(t, "validate", "--lint=false")
	require.Error(t, err)
	assert.Contains(t, out, "error: ")
}
