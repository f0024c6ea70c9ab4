package signature

import (
	"testing"

	"github.com/stretchr/testify/assert"
	apperrors "webhook-relay/internal/common/errors"
)

func TestVerifyDisabledWithoutSecret(t *testing.T) {
	v := NewVerifier("", nil)

	assert.False(t, v.Enabled())
	// Any signature (or none) passes when verification is disabled.
	assert.NoError(t, v.Verify([]byte(`{"event":"x"}`), "garbage"))
	assert.NoError(t, v.Verify([]byte(`{"event":"x"}`), ""))
}

func TestVerifyMissingHeader(t *testing.T) {
	v := NewVerifier("topsecret", nil)

	err := v.Verify([]byte(`{"event":"x"}`), "")
	assert.Error(t, err)
	assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))
}

func TestVerifyValidSignature(t *testing.T) {
	body := []byte(`{"event":"conversation_created","id":1001}`)
	secret := "topsecret"
	v := NewVerifier(secret, nil)

	t.Run("bare hex digest", func(t *testing.T) {
		assert.NoError(t, v.Verify(body, Sign(secret, body)))
	})

	t.Run("sha256= prefixed digest", func(t *testing.T) {
		assert.NoError(t, v.Verify(body, "sha256="+Sign(secret, body)))
	})

	t.Run("uppercase digest", func(t *testing.T) {
		upper := Sign(secret, body)
		assert.NoError(t, v.Verify(body, "SHA256="+upper))
	})
}

func TestVerifyRejectsWrongSignature(t *testing.T) {
	body := []byte(`{"event":"conversation_created"}`)
	v := NewVerifier("topsecret", nil)

	t.Run("signed with different secret", func(t *testing.T) {
		err := v.Verify(body, Sign("othersecret", body))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))
	})

	t.Run("signed over different body", func(t *testing.T) {
		err := v.Verify(body, Sign("topsecret", []byte(`tampered`)))
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))
	})

	t.Run("not hex at all", func(t *testing.T) {
		err := v.Verify(body, "zzzz-not-hex")
		assert.True(t, apperrors.IsType(err, apperrors.ErrTypeAuth))
	})
}
