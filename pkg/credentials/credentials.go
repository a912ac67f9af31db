// Package credentials resolves opaque credential references into
// usable secrets. The bridge never stores secret material itself; a
// connection carries only a reference, and the host's secret store is
// expected to implement Store. EnvStore is the built-in fallback for
// deployments without one.
package credentials

import (
	"context"
	"fmt"
	"os"
	"strings"
)

const (
	TypeBasic = "basic"
	TypeToken = "token"
)

// Credential is resolved secret material for one connection.
type Credential struct {
	Type     string
	Username string
	Password string
	Token    string
}

// Anonymous reports whether the credential carries no secret at all,
// i.e. requests should go out unauthenticated.
func (c Credential) Anonymous() bool {
	return c.Type == ""
}

type Store interface {
	Resolve(ctx context.Context, ref string) (Credential, error)
}

// EnvStore resolves a reference "ref" from GEOBRIDGE_CRED_<REF>.
// Accepted value formats: "basic:user:password" and "token:<value>".
type EnvStore struct{}

func NewEnvStore() *EnvStore {
	return &EnvStore{}
}

func (s *EnvStore) Resolve(ctx context.Context, ref string) (Credential, error) {
	if ref == "" {
		return Credential{}, nil
	}

	key := "GEOBRIDGE_CRED_" + strings.ToUpper(strings.ReplaceAll(ref, "-", "_"))

	value := os.Getenv(key)

	if value == "" {
		return Credential{}, fmt.Errorf("credential reference %q not found (%s unset)", ref, key)
	}

	parts := strings.SplitN(value, ":", 3)

	switch parts[0] {
	case TypeBasic:
		if len(parts) != 3 {
			return Credential{}, fmt.Errorf("credential reference %q: basic credentials need user and password", ref)
		}
		return Credential{Type: TypeBasic, Username: parts[1], Password: parts[2]}, nil
	case TypeToken:
		if len(parts) < 2 || parts[1] == "" {
			return Credential{}, fmt.Errorf("credential reference %q: token value missing", ref)
		}
		return Credential{Type: TypeToken, Token: strings.Join(parts[1:], ":")}, nil
	}

	return Credential{}, fmt.Errorf("credential reference %q: unknown credential type %q", ref, parts[0])
}
