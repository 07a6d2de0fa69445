package composer

import (
	"fmt"
	"regexp"
)

const (
	// ClusterAdminPolicyARN is the EKS access policy granting full cluster access.
	ClusterAdminPolicyARN = "arn:aws:eks::aws:cluster-access-policy/AmazonEKSClusterAdminPolicy"
	// ClusterAdminGroup is the Kubernetes group mapped for admin identities.
	ClusterAdminGroup = "system:masters"

	accessScopeCluster = "cluster"
	maxIdentityLength  = 64
)

// iamNamePattern matches the characters IAM accepts in user and role names.
var iamNamePattern = regexp.MustCompile(`^[A-Za-z0-9+=,.@_-]+$`)

// BindAdminIdentities derives one cluster-admin binding for every admin user
// and role, in input order (users first). The first malformed name aborts
// the whole binding with an IdentityFormatError.
func BindAdminIdentities(params DeploymentParameters) ([]AdminBinding, error) {
	if len(params.AdminUsers)+len(params.AdminRoles) == 0 {
		return nil, nil
	}
	if params.Account == "" {
		return nil, configErr("account", "required to bind admin identities")
	}

	bindings := make([]AdminBinding, 0, len(params.AdminUsers)+len(params.AdminRoles))
	for _, group := range []struct {
		kind  IdentityKind
		names []string
	}{
		{IdentityUser, params.AdminUsers},
		{IdentityRole, params.AdminRoles},
	} {
		for _, name := range group.names {
			b, err := bindAdmin(params.Account, group.kind, name)
			if err != nil {
				return nil, err
			}
			bindings = append(bindings, b)
		}
	}
	return bindings, nil
}

func bindAdmin(account string, kind IdentityKind, name string) (AdminBinding, error) {
	if err := ValidateIdentityName(kind, name); err != nil {
		return AdminBinding{}, err
	}
	return AdminBinding{
		Kind:      kind,
		Name:      name,
		ARN:       IdentityARN(account, kind, name),
		Groups:    []string{ClusterAdminGroup},
		PolicyARN: ClusterAdminPolicyARN,
		Scope:     accessScopeCluster,
	}, nil
}

// ValidateIdentityName reports whether name can be used as an IAM ARN path segment.
func ValidateIdentityName(kind IdentityKind, name string) error {
	switch {
	case name == "":
		return &IdentityFormatError{Kind: kind, Identity: name, Reason: "name is empty"}
	case len(name) > maxIdentityLength:
		return &IdentityFormatError{Kind: kind, Identity: name,
			Reason: fmt.Sprintf("name exceeds %d characters", maxIdentityLength)}
	case !iamNamePattern.MatchString(name):
		return &IdentityFormatError{Kind: kind, Identity: name,
			Reason: "only alphanumerics and +=,.@_- are allowed"}
	}
	return nil
}

// IdentityARN interpolates name into the account's IAM ARN namespace.
func IdentityARN(account string, kind IdentityKind, name string) string {
	return fmt.Sprintf("arn:aws:iam::%s:%s/%s", account, kind, name)
}
