package auth

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
	"unicode"

	"golang.org/x/crypto/bcrypt"
)

// PasswordPolicy bounds what Hash accepts. The defaults require 8 to
// 128 characters containing at least one letter and one digit;
// strict mode additionally demands both letter cases and a symbol.
type PasswordPolicy struct {
	MinLength        int
	MaxLength        int
	RequireMixedCase bool
	RequireSymbol    bool
}

// DefaultPasswordPolicy returns the shipped policy.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{MinLength: 8, MaxLength: 128}
}

// Hasher hashes and verifies passwords with bcrypt at a configured
// cost. The cost is re-checked on every login so that hashes written
// under an older, cheaper cost get transparently upgraded while the
// plaintext is at hand.
type Hasher struct {
	cost   int
	policy PasswordPolicy
}

// NewHasher builds a Hasher. Costs outside bcrypt's supported range
// fall back to the library default.
func NewHasher(cost int, policy PasswordPolicy) *Hasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &Hasher{cost: cost, policy: policy}
}

// Hash validates the plaintext against the policy and returns a
// bcrypt hash. Policy violations come back as *ValidationError.
func (h *Hasher) Hash(plain string) (string, error) {
	if err := h.check(plain); err != nil {
		return "", err
	}
	b, err := bcrypt.GenerateFromPassword(prehash(plain), h.cost)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Verify safely compares plaintext and hash. Mismatch is false, not
// an error.
func (h *Hasher) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), prehash(plain)) == nil
}

// prehash collapses the plaintext into a fixed-size digest before it
// reaches bcrypt. bcrypt only reads the first 72 bytes of its input,
// so feeding it the raw plaintext would make every character past 72
// meaningless while the policy allows up to MaxLength. The digest is
// base64-encoded to keep the bcrypt input free of NUL bytes.
func prehash(plain string) []byte {
	sum := sha256.Sum256([]byte(plain))
	return []byte(base64.StdEncoding.EncodeToString(sum[:]))
}

// NeedsRehash reports whether the stored hash was produced with a
// cost different from the configured one. Unparseable hashes also
// report true so they get replaced on the next successful login.
func (h *Hasher) NeedsRehash(hash string) bool {
	cost, err := bcrypt.Cost([]byte(hash))
	if err != nil {
		return true
	}
	return cost != h.cost
}

// check enforces the policy.
func (h *Hasher) check(plain string) error {
	n := len(plain)
	if n < h.policy.MinLength {
		return fieldError("password", "password is too short")
	}
	if n > h.policy.MaxLength {
		return fieldError("password", "password is too long")
	}

	var hasLetter, hasDigit, hasUpper, hasLower, hasSymbol bool
	for _, r := range plain {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
			if unicode.IsUpper(r) {
				hasUpper = true
			}
			if unicode.IsLower(r) {
				hasLower = true
			}
		case unicode.IsDigit(r):
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	if !hasLetter || !hasDigit {
		return fieldError("password", "password must contain at least one letter and one digit")
	}
	if h.policy.RequireMixedCase && (!hasUpper || !hasLower) {
		return fieldError("password", "password must contain both upper and lower case letters")
	}
	if h.policy.RequireSymbol && !hasSymbol {
		return fieldError("password", "password must contain a symbol")
	}
	return nil
}

// NormalizeEmail lowercases and trims an email address. All lookups
// and storage go through this so comparison is case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
