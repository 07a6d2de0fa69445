package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	wetwire "github.com/lex00/wetwire-eks-go"
)

func TestNewDiffCmd(t *testing.T) {
	cmd := newDiffCmd(&app{})

	if cmd.Use != "diff <old> <new>" {
		t.Errorf("Use = %q, want 'diff <old> <new>'", cmd.Use)
	}
	if cmd.Short == "" {
		t.Error("Short description should not be empty")
	}

	for _, name := range []string{"format", "ignore-order", "manifests"} {
		if cmd.Flags().Lookup(name) == nil {
			t.Errorf("missing --%s flag", name)
		}
	}
}

func TestDiff_Templates(t *testing.T) {
	dir := t.TempDir()
	old := filepath.Join(dir, "old.json")
	updated := filepath.Join(dir, "new.json")
	require.NoError(t, os.WriteFile(old, []byte(`{"Resources":{"Cluster":{"Type":"AWS::EKS::Cluster","Properties":{"Version":"1.26"}}}}`), 0o644))
	require.NoError(t, os.WriteFile(updated, []byte(`{"Resources":{"Cluster":{"Type":"AWS::EKS::Cluster","Properties":{"Version":"1.27"}}}}`), 0o644))

	out, err := execute(t, "diff", old, updated, "--format", "json")
	require.NoError(t, err)

	var result wetwire.DiffResult
	require.NoError(t, json.Unmarshal([]byte(out), &result))
	assert.Equal(t, 1, result.Summary.Modified)
	assert.Equal(t, []string{"Properties.Version modified"}, result.Diff.Modified[0].Changes)
}

func TestDiff_ManifestsAgainstCurrent(t *testing.T) {
	setDeploymentEnv(t)
	dir := t.TempDir()

	_, err := execute(t, "synth", "--output", dir)
	require.NoError(t, err)

	out, err := execute(t, "diff", "--manifests", dir, "-")
	require.NoError(t, err)
	assert.Equal(t, "No differences\n", out)

	t.Setenv("MIN_REPLICAS", "3")
	out, err = execute(t, "diff", "--manifests", dir, "-")
	require.NoError(t, err)
	assert.Contains(t, out, "~ HorizontalPodAutoscaler/my-cdk8s-deployment-hpa")
	assert.Contains(t, out, "spec.minReplicas modified")
}

func TestDiff_StackAgainstCurrent(t *testing.T) {
	setDeploymentEnv(t)
	path := filepath.Join(t.TempDir(), "cluster.json")

	_, err := execute(t, "stack", "-o", path)
	require.NoError(t, err)

	out, err := execute(t, "diff", path, "-")
	require.NoError(t, err)
	assert.Equal(t, "No differences\n", out)
}

func TestDiff_MissingFile(t *testing.T) {
	_, err := execute(t, "diff", "/nonexistent/a.json", "/nonexistent/b.json")
	require.Error(t, err)
}
