package auth

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestIssueAndVerify(t *testing.T) {
	token, err := IssueToken("secret", "HOLDERADDRESS", time.Minute)
	assert.NoError(t, err)

	address, ok := VerifyToken("secret", token)
	assert.True(t, ok)
	assert.Equal(t, "HOLDERADDRESS", address)
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	token, err := IssueToken("secret", "HOLDERADDRESS", time.Minute)
	assert.NoError(t, err)

	_, ok := VerifyToken("other-secret", token)
	assert.False(t, ok)
}

func TestVerifyRejectsExpired(t *testing.T) {
	token, err := IssueToken("secret", "HOLDERADDRESS", -time.Minute)
	assert.NoError(t, err)

	_, ok := VerifyToken("secret", token)
	assert.False(t, ok)
}

func TestVerifyRejectsGarbage(t *testing.T) {
	_, ok := VerifyToken("secret", "not-a-token")
	assert.False(t, ok)
}
