package passphrase

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func TestHashAndVerify(t *testing.T) {
	digest, err := Hash("correct horse battery staple")
	require.NoError(t, err)

	cost, err := bcrypt.Cost(digest)
	require.NoError(t, err)
	assert.Equal(t, KDFCost, cost)

	assert.NoError(t, Verify(digest, "correct horse battery staple"))
	assert.Error(t, Verify(digest, "wrong passphrase entirely"))
}

func TestHash_EmptyRejected(t *testing.T) {
	_, err := Hash("")
	assert.Error(t, err)
}

func TestNewSalt(t *testing.T) {
	a, err := NewSalt()
	require.NoError(t, err)
	assert.Len(t, a, SaltLength)

	b, err := NewSalt()
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestGeneratePlaceholder(t *testing.T) {
	p, err := GeneratePlaceholder()
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(p), MinPassphrase)

	q, err := GeneratePlaceholder()
	require.NoError(t, err)
	assert.NotEqual(t, p, q)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate("ten chars!"))
	assert.Error(t, Validate("short"))
	assert.Error(t, Validate(strings.Repeat("x", MaxPassphrase+1)))
}
