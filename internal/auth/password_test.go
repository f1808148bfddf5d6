package auth

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestPasswordRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, DefaultPasswordPolicy())

	hash, err := h.Hash("Passw0rd")
	require.NoError(t, err)
	require.NotEqual(t, "Passw0rd", hash)

	assert.True(t, h.Verify("Passw0rd", hash))
	assert.False(t, h.Verify("Passw0rd!", hash))
	assert.False(t, h.Verify("", hash))
}

func TestLongPasswordRoundTrip(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, DefaultPasswordPolicy())

	// 100 chars: policy-valid but past bcrypt's 72-byte input limit.
	pw := "a1" + strings.Repeat("b", 98)
	hash, err := h.Hash(pw)
	require.NoError(t, err)
	assert.True(t, h.Verify(pw, hash))

	// Characters beyond the 72nd still matter.
	other := "a1" + strings.Repeat("b", 97) + "c"
	assert.False(t, h.Verify(other, hash))

	// The full 128-char ceiling works too.
	max := "a1" + strings.Repeat("b", 126)
	hash, err = h.Hash(max)
	require.NoError(t, err)
	assert.True(t, h.Verify(max, hash))
}

func TestWeakPasswordsRejected(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, DefaultPasswordPolicy())

	long := make([]byte, 129)
	for i := range long {
		long[i] = 'a'
	}

	cases := map[string]string{
		"too short":  "a1b2c3",
		"too long":   string(long) + "1",
		"no digit":   "abcdefgh",
		"no letter":  "12345678",
		"empty":      "",
		"whitespace": "        ",
	}
	for name, pw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.Hash(pw)
			var val *ValidationError
			require.ErrorAs(t, err, &val)
			assert.Contains(t, val.Fields, "password")
		})
	}
}

func TestStrictPolicy(t *testing.T) {
	h := NewHasher(bcrypt.MinCost, PasswordPolicy{
		MinLength: 8, MaxLength: 128,
		RequireMixedCase: true, RequireSymbol: true,
	})

	_, err := h.Hash("passw0rd!")
	var val *ValidationError
	require.ErrorAs(t, err, &val)

	_, err = h.Hash("Passw0rd")
	require.ErrorAs(t, err, &val)

	_, err = h.Hash("Passw0rd!")
	require.NoError(t, err)
}

func TestNeedsRehash(t *testing.T) {
	old := NewHasher(bcrypt.MinCost, DefaultPasswordPolicy())
	hash, err := old.Hash("Passw0rd")
	require.NoError(t, err)

	current := NewHasher(bcrypt.MinCost+1, DefaultPasswordPolicy())
	assert.True(t, current.NeedsRehash(hash))
	assert.False(t, old.NeedsRehash(hash))
	assert.True(t, current.NeedsRehash("not-a-bcrypt-hash"))
}

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "a@example.com", NormalizeEmail("  A@Example.COM "))
}
