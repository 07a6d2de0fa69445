package synth

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/lex00/wetwire-eks-go/internal/composer"
	"github.com/lex00/wetwire-eks-go/internal/serialize"
)

func testManifests(t *testing.T) []composer.Manifest {
	t.Helper()
	manifests, err := composer.Compose(composer.DeploymentParameters{
		Account:                 "123456789012",
		Region:                  "us-east-1",
		Namespace:               "default",
		Certificate:             "mock-arn",
		AlbAccessLogsBucketName: "mock-bucket",
	})
	require.NoError(t, err)
	return manifests
}

func TestWriter_FolderLayout(t *testing.T) {
	dir := t.TempDir()
	core, logs := observer.New(zap.InfoLevel)

	w, err := New(Options{OutDir: dir}, zap.New(core))
	require.NoError(t, err)

	infos, err := w.Write(testManifests(t))
	require.NoError(t, err)
	require.Len(t, infos, 4)

	want := []string{
		"Deployment.my-cdk8s-deployment.k8s.yaml",
		"Service.my-service.k8s.yaml",
		"HorizontalPodAutoscaler.my-cdk8s-deployment-hpa.k8s.yaml",
		"Ingress.my-test-ingress.k8s.yaml",
	}
	for i, name := range want {
		path := filepath.Join(dir, DefaultChart, name)
		assert.Equal(t, path, infos[i].File)
		assert.FileExists(t, path)
	}

	data, err := os.ReadFile(filepath.Join(dir, DefaultChart, want[3]))
	require.NoError(t, err)
	assert.Contains(t, string(data), "alb.ingress.kubernetes.io/certificate-arn: mock-arn")
	assert.NotContains(t, string(data), "status:")

	assert.Equal(t, 1, logs.FilterMessage("synthesized manifests").Len())
}

func TestWriter_FileLayout(t *testing.T) {
	dir := t.TempDir()
	w, err := New(Options{OutDir: dir, Chart: "shop", Layout: LayoutFile}, nil)
	require.NoError(t, err)

	infos, err := w.Write(testManifests(t))
	require.NoError(t, err)

	path := filepath.Join(dir, "shop.k8s.yaml")
	for _, info := range infos {
		assert.Equal(t, path, info.File)
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	docs, err := serialize.SplitYAMLStream(data)
	require.NoError(t, err)
	require.Len(t, docs, 4)
	assert.Equal(t, "Deployment", docs[0]["kind"])
	assert.Equal(t, "Ingress", docs[3]["kind"])
}

func TestRender_Deterministic(t *testing.T) {
	first, err := Render(testManifests(t))
	require.NoError(t, err)
	second, err := Render(testManifests(t))
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestNew_UnknownLayout(t *testing.T) {
	_, err := New(Options{Layout: "tree"}, nil)
	require.Error(t, err)
}
