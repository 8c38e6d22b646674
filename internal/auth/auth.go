package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"slices"
	"strings"
)

const (
	// RoleAnswerReader may ask questions.
	RoleAnswerReader = "answer_reader"
	// RoleOperator may inspect the running service configuration.
	RoleOperator = "operator"
)

var knownRoles = []string{RoleAnswerReader, RoleOperator}

// Identity is the caller behind an API key. Client names the consuming
// application, for example a chat bot or a dashboard.
type Identity struct {
	Client string
	Roles  []string
}

func (i Identity) HasRole(role string) bool {
	return slices.Contains(i.Roles, role)
}

type APIKeyValidator interface {
	Validate(ctx context.Context, apiKey string) (Identity, bool)
}

// StaticAPIKeyValidator checks keys from configuration. Only SHA-256
// digests of the keys are kept in memory.
type StaticAPIKeyValidator struct {
	keys map[[sha256.Size]byte]Identity
}

// NewStaticAPIKeyValidator parses comma separated key:client:role|role
// entries. Roles must be answer_reader or operator.
func NewStaticAPIKeyValidator(entries string) (*StaticAPIKeyValidator, error) {
	validator := &StaticAPIKeyValidator{keys: map[[sha256.Size]byte]Identity{}}
	entries = strings.TrimSpace(entries)
	if entries == "" {
		return validator, nil
	}

	for _, entry := range strings.Split(entries, ",") {
		key, identity, err := parseEntry(entry)
		if err != nil {
			return nil, err
		}
		digest := sha256.Sum256([]byte(key))
		if _, exists := validator.keys[digest]; exists {
			return nil, fmt.Errorf("static key for client %q is defined twice", identity.Client)
		}
		validator.keys[digest] = identity
	}
	return validator, nil
}

func parseEntry(entry string) (string, Identity, error) {
	key, rest, ok := strings.Cut(strings.TrimSpace(entry), ":")
	client, rawRoles, ok2 := strings.Cut(rest, ":")
	if !ok || !ok2 || strings.Contains(rawRoles, ":") {
		return "", Identity{}, fmt.Errorf("invalid static key entry: expected key:client:role|role")
	}
	key, client = strings.TrimSpace(key), strings.TrimSpace(client)
	if key == "" || client == "" {
		return "", Identity{}, fmt.Errorf("invalid static key entry for client %q: empty key or client", client)
	}

	roles := make([]string, 0, 2)
	for _, role := range strings.Split(rawRoles, "|") {
		role = strings.TrimSpace(role)
		if role == "" {
			continue
		}
		if !slices.Contains(knownRoles, role) {
			return "", Identity{}, fmt.Errorf("static key for client %q has unknown role %q", client, role)
		}
		if !slices.Contains(roles, role) {
			roles = append(roles, role)
		}
	}
	if len(roles) == 0 {
		return "", Identity{}, fmt.Errorf("static key for client %q needs at least one role", client)
	}
	slices.Sort(roles)
	return key, Identity{Client: client, Roles: roles}, nil
}

func (v *StaticAPIKeyValidator) Validate(_ context.Context, apiKey string) (Identity, bool) {
	identity, ok := v.keys[sha256.Sum256([]byte(apiKey))]
	return identity, ok
}

// KeyFingerprint is a short, non-reversible label for a key in logs.
func KeyFingerprint(apiKey string) string {
	digest := sha256.Sum256([]byte(apiKey))
	return hex.EncodeToString(digest[:4])
}
