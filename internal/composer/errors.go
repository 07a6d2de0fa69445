package composer

import "fmt"

// ConfigurationError reports a missing input or a violated invariant.
// It is always returned before any manifest is produced.
type ConfigurationError struct {
	// Field is the parameter or entity attribute at fault (e.g., "namespace", "scaling.maxReplicas").
	Field string
	// Reason describes the violation.
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// IdentityFormatError reports an admin identity name that cannot be
// embedded into an IAM ARN path segment.
type IdentityFormatError struct {
	// Kind is "user" or "role".
	Kind IdentityKind
	// Identity is the offending name as supplied.
	Identity string
	// Reason describes why the name was rejected.
	Reason string
}

func (e *IdentityFormatError) Error() string {
	return fmt.Sprintf("invalid admin %s %q: %s", e.Kind, e.Identity, e.Reason)
}

func configErr(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}
