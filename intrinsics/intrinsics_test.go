package intrinsics

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRef_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(Ref{LogicalName: "Cluster"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ref": "Cluster"}`, string(data))
}

func TestGetAtt_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(GetAtt{LogicalName: "ClusterRole", Attribute: "Arn"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::GetAtt": ["ClusterRole", "Arn"]}`, string(data))
}

func TestManagedPolicy(t *testing.T) {
	data, err := json.Marshal(ManagedPolicy("AmazonEKSClusterPolicy"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"Fn::Sub": "arn:${AWS::Partition}:iam::aws:policy/AmazonEKSClusterPolicy"}`, string(data))
}

func TestBucketObjects(t *testing.T) {
	assert.Equal(t, "${AlbLogsBucket.Arn}/AWSLogs/${AWS::AccountId}/*", BucketObjects("AlbLogsBucket", "").String)
	assert.Equal(t, "${AlbLogsBucket.Arn}/alb/AWSLogs/${AWS::AccountId}/*", BucketObjects("AlbLogsBucket", "alb").String)
}

func TestPolicyDocument_MarshalJSON(t *testing.T) {
	doc := NewPolicyDocument(AssumeRoleStatement(ServicePrincipal{"eks.amazonaws.com"}))
	data, err := json.Marshal(doc)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"Version": "2012-10-17",
		"Statement": [{
			"Effect": "Allow",
			"Principal": {"Service": "eks.amazonaws.com"},
			"Action": ["sts:AssumeRole"]
		}]
	}`, string(data))
}

func TestServicePrincipal_Multiple(t *testing.T) {
	data, err := json.Marshal(ServicePrincipal{"eks.amazonaws.com", "eks-fargate-pods.amazonaws.com"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"Service": ["eks.amazonaws.com", "eks-fargate-pods.amazonaws.com"]}`, string(data))
}

func TestAWSPrincipal_MarshalJSON(t *testing.T) {
	data, err := json.Marshal(AWSPrincipal{"arn:aws:iam::127311923021:root"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"AWS": "arn:aws:iam::127311923021:root"}`, string(data))
}

func TestPseudoParameters(t *testing.T) {
	data, err := json.Marshal(AWS_REGION)
	require.NoError(t, err)
	assert.JSONEq(t, `{"Ref": "AWS::Region"}`, string(data))
}
