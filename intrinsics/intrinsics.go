// Package intrinsics provides the CloudFormation intrinsic functions used by
// the cluster and pipeline stacks.
//
// The core types are re-exported from cloudformation-schema-go:
//
//	Ref{LogicalName: "Cluster"}                     → {"Ref": "Cluster"}
//	GetAtt{LogicalName: "Cluster", Attribute: "Arn"} → {"Fn::GetAtt": ["Cluster", "Arn"]}
//	Sub{String: "${AWS::StackName}-logs"}           → {"Fn::Sub": "${AWS::StackName}-logs"}
package intrinsics

import (
	"fmt"

	"github.com/lex00/cloudformation-schema-go/intrinsics"
)

type (
	// Ref represents a CloudFormation Ref intrinsic function.
	Ref = intrinsics.Ref

	// GetAtt represents a CloudFormation Fn::GetAtt intrinsic function.
	GetAtt = intrinsics.GetAtt

	// Sub represents a CloudFormation Fn::Sub intrinsic function.
	Sub = intrinsics.Sub

	// SubWithMap is Fn::Sub with a variable map.
	SubWithMap = intrinsics.SubWithMap

	// Join represents a CloudFormation Fn::Join intrinsic function.
	Join = intrinsics.Join

	// Select represents a CloudFormation Fn::Select intrinsic function.
	Select = intrinsics.Select

	// If represents a CloudFormation Fn::If intrinsic function.
	If = intrinsics.If

	// Equals represents a CloudFormation Fn::Equals condition function.
	Equals = intrinsics.Equals
)

// ManagedPolicy returns the partition-aware ARN of an AWS managed IAM policy.
func ManagedPolicy(name string) Sub {
	return Sub{String: "arn:${AWS::Partition}:iam::aws:policy/" + name}
}

// BucketObjects returns the ARN pattern for objects under prefix in the
// bucket declared as logicalName.
func BucketObjects(logicalName, prefix string) Sub {
	if prefix == "" {
		return Sub{String: fmt.Sprintf("${%s.Arn}/AWSLogs/${AWS::AccountId}/*", logicalName)}
	}
	return Sub{String: fmt.Sprintf("${%s.Arn}/%s/AWSLogs/${AWS::AccountId}/*", logicalName, prefix)}
}
