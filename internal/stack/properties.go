package stack

// CloudFormation property shapes for the resources the cluster stack
// declares. Only the properties that are set are listed.

type roleProps struct {
	AssumeRolePolicyDocument any   `json:"AssumeRolePolicyDocument"`
	ManagedPolicyArns        []any `json:"ManagedPolicyArns,omitempty"`
	Tags                     []tag `json:"Tags,omitempty"`
}

type tag struct {
	Key   string `json:"Key"`
	Value string `json:"Value"`
}

type clusterProps struct {
	Name               string        `json:"Name"`
	Version            string        `json:"Version,omitempty"`
	RoleArn            any           `json:"RoleArn"`
	ResourcesVpcConfig vpcConfig     `json:"ResourcesVpcConfig"`
	AccessConfig       *accessConfig `json:"AccessConfig,omitempty"`
	Tags               []tag         `json:"Tags,omitempty"`
}

type vpcConfig struct {
	SubnetIds             any  `json:"SubnetIds"`
	EndpointPublicAccess  bool `json:"EndpointPublicAccess,omitempty"`
	EndpointPrivateAccess bool `json:"EndpointPrivateAccess,omitempty"`
}

type accessConfig struct {
	AuthenticationMode                      string `json:"AuthenticationMode"`
	BootstrapClusterCreatorAdminPermissions bool   `json:"BootstrapClusterCreatorAdminPermissions,omitempty"`
}

type fargateProfileProps struct {
	ClusterName         any               `json:"ClusterName"`
	FargateProfileName  string            `json:"FargateProfileName"`
	PodExecutionRoleArn any               `json:"PodExecutionRoleArn"`
	Subnets             any               `json:"Subnets,omitempty"`
	Selectors           []fargateSelector `json:"Selectors"`
}

type fargateSelector struct {
	Namespace string `json:"Namespace"`
}

type accessEntryProps struct {
	ClusterName    any            `json:"ClusterName"`
	PrincipalArn   string         `json:"PrincipalArn"`
	Type           string         `json:"Type,omitempty"`
	AccessPolicies []accessPolicy `json:"AccessPolicies,omitempty"`
}

type accessPolicy struct {
	PolicyArn   string      `json:"PolicyArn"`
	AccessScope accessScope `json:"AccessScope"`
}

type accessScope struct {
	Type       string   `json:"Type"`
	Namespaces []string `json:"Namespaces,omitempty"`
}

type bucketProps struct {
	BucketName                     string                  `json:"BucketName,omitempty"`
	BucketEncryption               *bucketEncryption       `json:"BucketEncryption,omitempty"`
	PublicAccessBlockConfiguration *publicAccessBlock      `json:"PublicAccessBlockConfiguration,omitempty"`
	OwnershipControls              *ownershipControls      `json:"OwnershipControls,omitempty"`
	LifecycleConfiguration         *lifecycleConfiguration `json:"LifecycleConfiguration,omitempty"`
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

type ownershipControls struct {
	Rules []ownershipRule `json:"Rules"`
}

type ownershipRule struct {
	ObjectOwnership string `json:"ObjectOwnership"`
}

type lifecycleConfiguration struct {
	Rules []lifecycleRule `json:"Rules"`
}

type lifecycleRule struct {
	ID               string `json:"Id"`
	Status           string `json:"Status"`
	ExpirationInDays int    `json:"ExpirationInDays,omitempty"`
}

type bucketPolicyProps struct {
	Bucket         any `json:"Bucket"`
	PolicyDocument any `json:"PolicyDocument"`
}

type recordSetProps struct {
	HostedZoneID    string   `json:"HostedZoneId"`
	Name            string   `json:"Name"`
	Type            string   `json:"Type"`
	TTL             string   `json:"TTL"`
	ResourceRecords []string `json:"ResourceRecords"`
}
