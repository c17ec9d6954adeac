// Package auth supplies the verified identity and the single
// capability the import pipeline consumes as a precondition: may this
// user import financial data. Token issuance and expiry live in the
// surrounding platform; this package only verifies.
package auth

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidToken is returned for unknown, malformed or expired
// bearer tokens.
var ErrInvalidToken = errors.New("auth: invalid or expired token")

// Identity is a verified caller.
type Identity struct {
	UserID string

	// CanImportFinancial grants the financial-import capability.
	// Without it import endpoints answer 403.
	CanImportFinancial bool
}

// Verifier checks a bearer token and returns the caller's identity.
type Verifier interface {
	Verify(token string) (*Identity, error)
}

// StaticVerifier verifies tokens against a fixed table, configured
// from the environment as comma-separated "token:user[:import]"
// triples. The ":import" suffix grants the import capability.
type StaticVerifier struct {
	identities map[string]Identity
}

// NewStaticVerifier parses the token table. An empty spec yields a
// verifier that rejects everything.
func NewStaticVerifier(spec string) (*StaticVerifier, error) {
	v := &StaticVerifier{identities: make(map[string]Identity)}

	for _, entry := range strings.Split(spec, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		parts := strings.Split(entry, ":")
		if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
			return nil, fmt.Errorf("NewStaticVerifier: malformed entry %q, want token:user[:import]", entry)
		}
		id := Identity{UserID: parts[1]}
		if len(parts) > 2 && parts[2] == "import" {
			id.CanImportFinancial = true
		}
		v.identities[parts[0]] = id
	}

	return v, nil
}

// Verify implements Verifier.
func (v *StaticVerifier) Verify(token string) (*Identity, error) {
	id, ok := v.identities[token]
	if !ok {
		return nil, ErrInvalidToken
	}
	cp := id
	return &cp, nil
}

var _ Verifier = (*StaticVerifier)(nil)
