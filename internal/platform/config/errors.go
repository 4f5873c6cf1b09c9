package config

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strings"
)

var errSecretResolverNotConfigured = errors.New("secret resolver not configured")

// ValidationError is returned when required configuration fields are missing or invalid.
type ValidationError struct {
	fields []string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation failed: missing or invalid fields [%s]", strings.Join(e.fields, ", "))
}

// Fields returns a copy of the missing or invalid field list.
func (e *ValidationError) Fields() []string {
	return append([]string(nil), e.fields...)
}

// SecretError describes a failure while resolving a secret reference.
type SecretError struct {
	Ref string
	Err error
}

// Error implements the error interface.
func (e *SecretError) Error() string {
	return fmt.Sprintf("secret resolution failed for ref %q: %v", e.Ref, e.Err)
}

// Unwrap exposes the underlying error.
func (e *SecretError) Unwrap() error { return e.Err }

// MissingSecretsError lists required secrets that resolved to empty values.
type MissingSecretsError struct {
	names []string
}

// Error implements the error interface. Names are redacted.
func (e *MissingSecretsError) Error() string {
	if e == nil || len(e.names) == 0 {
		return "missing required secrets"
	}
	return fmt.Sprintf("missing required secrets [%s]", strings.Join(e.RedactedNames(), ", "))
}

// Names returns the config field names of the missing secrets.
func (e *MissingSecretsError) Names() []string {
	if e == nil {
		return nil
	}
	out := append([]string(nil), e.names...)
	sort.Strings(out)
	return out
}

// RedactedNames returns stable hashes of the missing names, safe for logs.
func (e *MissingSecretsError) RedactedNames() []string {
	if e == nil {
		return nil
	}
	out := make([]string, 0, len(e.names))
	for _, name := range e.names {
		sum := sha256.Sum256([]byte(name))
		out = append(out, hex.EncodeToString(sum[:8]))
	}
	sort.Strings(out)
	return out
}

func findMissingSecrets(required []string, resolved map[string]string) *MissingSecretsError {
	seen := make(map[string]struct{}, len(required))
	var missing []string
	for _, name := range required {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		if _, ok := seen[name]; ok {
			continue
		}
		seen[name] = struct{}{}
		if resolved[name] == "" {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return &MissingSecretsError{names: missing}
}

func resolveSecret(ctx context.Context, value string, resolver SecretResolver) (string, error) {
	if !isSecretReference(value) {
		return value, nil
	}
	ref := normalizeSecretReference(value)
	if resolver == nil {
		return "", &SecretError{Ref: ref, Err: errSecretResolverNotConfigured}
	}
	secret, err := resolver.ResolveSecret(ctx, ref)
	if err != nil {
		return "", &SecretError{Ref: ref, Err: err}
	}
	return secret, nil
}

func isSecretReference(value string) bool {
	trimmed := strings.TrimSpace(value)
	return strings.HasPrefix(trimmed, "secret://") || strings.HasPrefix(trimmed, "sm://")
}

func normalizeSecretReference(value string) string {
	trimmed := strings.TrimSpace(value)
	if rest, ok := strings.CutPrefix(trimmed, "sm://"); ok {
		return "secret://" + rest
	}
	return trimmed
}
