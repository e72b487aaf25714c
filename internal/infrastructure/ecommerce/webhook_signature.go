package ecommerce

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"strings"

	"github.com/storesync/backend/internal/domain/integration"
)

// Webhook headers sent by the platform
const (
	HeaderWebhookHMAC   = "X-Shopify-Hmac-Sha256"
	HeaderWebhookDomain = "X-Shopify-Shop-Domain"
	HeaderWebhookTopic  = "X-Shopify-Topic"
	HeaderWebhookID     = "X-Shopify-Webhook-Id"
)

// SignWebhook returns base64(HMAC-SHA256(body, secret))
func SignWebhook(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// VerifyWebhook checks a webhook signature against the raw body.
// The comparison runs in constant time over the decoded MAC.
func VerifyWebhook(secret string, body []byte, signature string) error {
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return integration.ErrMissingSignature
	}
	given, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return integration.ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	if !hmac.Equal(mac.Sum(nil), given) {
		return integration.ErrInvalidSignature
	}
	return nil
}
