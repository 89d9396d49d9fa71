// Package mercadopago provides Mercado Pago webhook signature validation.
package mercadopago

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

// WebhookValidator validates Mercado Pago webhook signatures.
type WebhookValidator struct{}

// NewWebhookValidator creates a new webhook validator.
func NewWebhookValidator() *WebhookValidator {
	return &WebhookValidator{}
}

// ValidateSignature validates the x-signature header.
//
// The x-signature header contains: ts=<timestamp>,v1=<signature>
// The signature is HMAC-SHA256 of: id:<data.id>;request-id:<x-request-id>;ts:<timestamp>;
func (v *WebhookValidator) ValidateSignature(xSignature, xRequestID, dataID, secret string) bool {
	if xSignature == "" || secret == "" {
		return false
	}

	ts, hash := parseSignatureHeader(xSignature)
	if ts == "" || hash == "" {
		return false
	}

	manifest := buildManifest(dataID, xRequestID, ts)
	expectedHash := calculateHMAC(manifest, secret)

	return hmac.Equal([]byte(hash), []byte(expectedHash))
}

var (
	tsRegex = regexp.MustCompile(`ts=([^,]+)`)
	v1Regex = regexp.MustCompile(`v1=([^,]+)`)
)

// parseSignatureHeader extracts ts and v1 values from the x-signature header.
func parseSignatureHeader(header string) (ts, hash string) {
	if m := tsRegex.FindStringSubmatch(header); len(m) > 1 {
		ts = m[1]
	}
	if m := v1Regex.FindStringSubmatch(header); len(m) > 1 {
		hash = m[1]
	}
	return ts, hash
}

// buildManifest constructs the string to be signed.
// Format: id:<data.id>;request-id:<x-request-id>;ts:<timestamp>;
func buildManifest(dataID, requestID, ts string) string {
	var parts []string

	if dataID != "" {
		parts = append(parts, "id:"+dataID)
	}
	if requestID != "" {
		parts = append(parts, "request-id:"+requestID)
	}
	if ts != "" {
		parts = append(parts, "ts:"+ts)
	}

	return strings.Join(parts, ";") + ";"
}

// calculateHMAC computes HMAC-SHA256 of the manifest.
func calculateHMAC(manifest, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(manifest))
	return hex.EncodeToString(h.Sum(nil))
}
