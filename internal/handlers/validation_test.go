package handlers

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateRequest_LockReasonOneOf(t *testing.T) {
	for _, reason := range []string{"idle", "backgrounded", "logout", "force", "rotation", "admin"} {
		fields := ValidateRequest(LockRequest{Reason: reason})
		assert.Nil(t, fields, "reason %q should validate", reason)
	}

	fields := ValidateRequest(LockRequest{Reason: "manual"})
	require.Len(t, fields, 1)
	assert.Equal(t, "Reason", fields[0].Field)

	fields = ValidateRequest(LockRequest{})
	require.Len(t, fields, 1)
	assert.Equal(t, "this field is required", fields[0].Message)
}

func TestValidateRequest_PassphraseBounds(t *testing.T) {
	assert.Nil(t, ValidateRequest(ChangePassphraseRequest{
		CurrentPassphrase: "old-passphrase",
		NewPassphrase:     "long enough passphrase",
	}))

	fields := ValidateRequest(ChangePassphraseRequest{NewPassphrase: "short"})
	require.Len(t, fields, 1)
	assert.Equal(t, "NewPassphrase", fields[0].Field)
	assert.Contains(t, fields[0].Message, "minimum of 10")

	fields = ValidateRequest(ChangePassphraseRequest{NewPassphrase: strings.Repeat("x", 300)})
	require.Len(t, fields, 1)
	assert.Contains(t, fields[0].Message, "maximum of 256")
}

func TestValidateRequest_RecoveryCodeLength(t *testing.T) {
	assert.Nil(t, ValidateRequest(ResetPassphraseRequest{
		RecoveryCode:  "ABCD-1234-WXYZ",
		NewPassphrase: "long enough passphrase",
	}))

	fields := ValidateRequest(ResetPassphraseRequest{
		RecoveryCode:  "ABCD-1234",
		NewPassphrase: "long enough passphrase",
	})
	require.Len(t, fields, 1)
	assert.Equal(t, "RecoveryCode", fields[0].Field)
}

func TestDecodeJSON(t *testing.T) {
	var req LockRequest

	r := httptest.NewRequest("POST", "/api/vault/lock", strings.NewReader(`{"reason":"idle"}`))
	w := httptest.NewRecorder()
	assert.True(t, decodeJSON(w, r, &req))
	assert.Equal(t, "idle", req.Reason)

	r = httptest.NewRequest("POST", "/api/vault/lock", strings.NewReader(`{not json`))
	w = httptest.NewRecorder()
	assert.False(t, decodeJSON(w, r, &req))
	assert.Equal(t, 400, w.Code)
}
