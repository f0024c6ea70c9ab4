// Package signature verifies HMAC-SHA256 signatures over raw webhook
// bodies. Verification is disabled when no secret is configured, which is
// an explicit escape hatch for non-production environments; the verifier
// logs that state loudly at construction so it cannot go unnoticed.
package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strings"

	apperrors "webhook-relay/internal/common/errors"
	"webhook-relay/internal/common/logging"
)

// Verifier checks inbound webhook signatures against a shared secret
type Verifier struct {
	secret []byte
	logger logging.Logger
}

// NewVerifier creates a signature verifier. An empty secret disables
// verification entirely.
func NewVerifier(secret string, logger logging.Logger) *Verifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	if secret == "" {
		logger.Warn("Webhook signature verification DISABLED: no secret configured")
	}

	return &Verifier{
		secret: []byte(secret),
		logger: logger,
	}
}

// Enabled reports whether a secret is configured
func (v *Verifier) Enabled() bool {
	return len(v.secret) > 0
}

// Verify checks the supplied signature header against HMAC-SHA256 of the
// raw body. It returns nil when the signature matches or verification is
// disabled, and an authentication error otherwise. It never panics; any
// failure to verify is reported as a rejection.
func (v *Verifier) Verify(rawBody []byte, signatureHeader string) error {
	if !v.Enabled() {
		return nil
	}

	if signatureHeader == "" {
		return apperrors.AuthError("missing signature header")
	}

	supplied := normalize(signatureHeader)
	if _, err := hex.DecodeString(supplied); err != nil {
		v.logger.Debug("Signature header is not valid hex",
			logging.Field{Key: "error", Value: err.Error()},
		)
		return apperrors.AuthError("malformed signature header")
	}

	mac := hmac.New(sha256.New, v.secret)
	mac.Write(rawBody)
	expected := hex.EncodeToString(mac.Sum(nil))

	// Constant-time comparison to prevent timing side-channels.
	if !hmac.Equal([]byte(supplied), []byte(expected)) {
		v.logger.Warn("Webhook signature mismatch",
			logging.Field{Key: "body_bytes", Value: len(rawBody)},
		)
		return apperrors.AuthError("signature mismatch")
	}

	return nil
}

// normalize strips the common "sha256=" prefix and lowercases the hex
// digest, accepting both bare and prefixed header forms.
func normalize(header string) string {
	header = strings.TrimSpace(header)
	header = strings.TrimPrefix(header, "sha256=")
	return strings.ToLower(header)
}

// Sign computes the hex HMAC-SHA256 digest for a body with the given
// secret. Shared by tests and by senders that need to produce a valid
// header.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
