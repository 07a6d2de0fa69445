package pipeline

import "sort"

type bucketProps struct {
	BucketEncryption               *bucketEncryption  `json:"BucketEncryption,omitempty"`
	PublicAccessBlockConfiguration *publicAccessBlock `json:"PublicAccessBlockConfiguration,omitempty"`
}

type bucketEncryption struct {
	ServerSideEncryptionConfiguration []encryptionRule `json:"ServerSideEncryptionConfiguration"`
}

type encryptionRule struct {
	ServerSideEncryptionByDefault encryptionDefault `json:"ServerSideEncryptionByDefault"`
}

type encryptionDefault struct {
	SSEAlgorithm string `json:"SSEAlgorithm"`
}

type publicAccessBlock struct {
	BlockPublicAcls       bool `json:"BlockPublicAcls"`
	BlockPublicPolicy     bool `json:"BlockPublicPolicy"`
	IgnorePublicAcls      bool `json:"IgnorePublicAcls"`
	RestrictPublicBuckets bool `json:"RestrictPublicBuckets"`
}

type roleProps struct {
	AssumeRolePolicyDocument any            `json:"AssumeRolePolicyDocument"`
	ManagedPolicyArns        []any          `json:"ManagedPolicyArns,omitempty"`
	Policies                 []inlinePolicy `json:"Policies,omitempty"`
}

type inlinePolicy struct {
	PolicyName     string `json:"PolicyName"`
	PolicyDocument any    `json:"PolicyDocument"`
}

type projectProps struct {
	Name        string             `json:"Name"`
	ServiceRole any                `json:"ServiceRole"`
	Source      projectSource      `json:"Source"`
	Artifacts   projectArtifacts   `json:"Artifacts"`
	Environment projectEnvironment `json:"Environment"`
}

type projectSource struct {
	Type      string `json:"Type"`
	BuildSpec string `json:"BuildSpec,omitempty"`
}

type projectArtifacts struct {
	Type string `json:"Type"`
}

type projectEnvironment struct {
	Type                 string                `json:"Type"`
	ComputeType          string                `json:"ComputeType"`
	Image                string                `json:"Image"`
	EnvironmentVariables []environmentVariable `json:"EnvironmentVariables,omitempty"`
}

type environmentVariable struct {
	Name  string `json:"Name"`
	Value string `json:"Value"`
}

type pipelineProps struct {
	Name          string        `json:"Name"`
	RoleArn       any           `json:"RoleArn"`
	ArtifactStore artifactStore `json:"ArtifactStore"`
	Stages        []stage       `json:"Stages"`
}

type artifactStore struct {
	Type     string `json:"Type"`
	Location any    `json:"Location"`
}

type stage struct {
	Name    string   `json:"Name"`
	Actions []action `json:"Actions"`
}

type action struct {
	Name            string         `json:"Name"`
	ActionTypeID    actionType     `json:"ActionTypeId"`
	Configuration   map[string]any `json:"Configuration,omitempty"`
	InputArtifacts  []artifact     `json:"InputArtifacts,omitempty"`
	OutputArtifacts []artifact     `json:"OutputArtifacts,omitempty"`
	RunOrder        int            `json:"RunOrder,omitempty"`
}

type actionType struct {
	Category string `json:"Category"`
	Owner    string `json:"Owner"`
	Provider string `json:"Provider"`
	Version  string `json:"Version"`
}

type artifact struct {
	Name string `json:"Name"`
}

type buildSpec struct {
	Version   string                `yaml:"version"`
	Phases    map[string]buildPhase `yaml:"phases"`
	Artifacts buildArtifacts        `yaml:"artifacts"`
}

type buildPhase struct {
	Commands []string `yaml:"commands"`
}

type buildArtifacts struct {
	Files         []string `yaml:"files"`
	BaseDirectory string   `yaml:"base-directory"`
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
