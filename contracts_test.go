package wetwire_eks

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestTemplate_JSONOmitsEmptySections(t *testing.T) {
	tmpl := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Resources: map[string]ResourceDef{
			"Cluster": {Type: "AWS::EKS::Cluster"},
		},
	}

	data, err := json.Marshal(tmpl)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Contains(t, raw, "Resources")
	assert.NotContains(t, raw, "Parameters")
	assert.NotContains(t, raw, "Outputs")
	assert.NotContains(t, raw, "Description")

	cluster := raw["Resources"].(map[string]any)["Cluster"].(map[string]any)
	assert.Equal(t, map[string]any{"Type": "AWS::EKS::Cluster"}, cluster)
}

func TestTemplate_YAMLRoundTrip(t *testing.T) {
	tmpl := Template{
		AWSTemplateFormatVersion: "2010-09-09",
		Parameters: map[string]Parameter{
			"SubnetIds": {Type: "List<AWS::EC2::Subnet::Id>", Description: "Cluster subnets"},
		},
		Resources: map[string]ResourceDef{
			"FargateProfile": {Type: "AWS::EKS::FargateProfile", DependsOn: []string{"Cluster"}},
		},
		Outputs: map[string]Output{
			"ClusterName": {Value: map[string]any{"Ref": "Cluster"}, Export: &OutputExport{Name: "cdk8s-samples-ClusterName"}},
		},
	}

	data, err := yaml.Marshal(tmpl)
	require.NoError(t, err)

	var back Template
	require.NoError(t, yaml.Unmarshal(data, &back))
	assert.Equal(t, tmpl.Parameters, back.Parameters)
	assert.Equal(t, tmpl.Resources, back.Resources)
	assert.Equal(t, "cdk8s-samples-ClusterName", back.Outputs["ClusterName"].Export.Name)
}

func TestDNSResult_JSON(t *testing.T) {
	data, err := json.Marshal(DNSResult{Configured: true})
	require.NoError(t, err)
	assert.JSONEq(t, `{"ready":false,"configured":true,"applied":false}`, string(data))
}

func TestDiffResult_JSON(t *testing.T) {
	result := DiffResult{
		Success: true,
		Diff: Diff{
			Modified: []DiffEntry{{Name: "Ingress/my-test-ingress", Type: "Ingress", Changes: []string{"spec modified"}}},
		},
		Summary: DiffSummary{Modified: 1, Total: 1},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"success": true,
		"diff": {"modified": [{"name": "Ingress/my-test-ingress", "type": "Ingress", "changes": ["spec modified"]}]},
		"summary": {"added": 0, "removed": 0, "modified": 1, "total": 1}
	}`, string(data))
}

func TestSynthResult_JSON(t *testing.T) {
	result := SynthResult{
		Success: true,
		Chart:   "AppChart",
		Manifests: []ManifestInfo{
			{Kind: "Deployment", Name: "my-cdk8s-deployment", Namespace: "default", File: "dist/AppChart/Deployment.my-cdk8s-deployment.k8s.yaml"},
		},
	}

	data, err := json.Marshal(result)
	require.NoError(t, err)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.NotContains(t, raw, "errors")
	assert.NotContains(t, raw, "files")
	manifests := raw["manifests"].([]any)
	require.Len(t, manifests, 1)
	assert.Equal(t, "default", manifests[0].(map[string]any)["namespace"])
}
