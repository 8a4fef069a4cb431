package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"strings"

	"github.com/sudhir1041/nursery-orders/pkg/enums"
)

// Encoding is how a provider encodes the HMAC digest in its header.
type Encoding int

const (
	EncodingBase64 Encoding = iota
	EncodingHex
)

const (
	ShopifyHeader     = "X-Shopify-Hmac-Sha256"
	WooCommerceHeader = "X-Wc-Webhook-Signature"
)

// Verifier checks HMAC-SHA256 signatures computed over the raw request body.
type Verifier struct {
	Header   string
	Encoding Encoding
}

// ForSource returns the verifier for a webhook-capable source.
func ForSource(source enums.Source) (Verifier, bool) {
	switch source {
	case enums.SourceShopify:
		return Verifier{Header: ShopifyHeader, Encoding: EncodingBase64}, true
	case enums.SourceWooCommerce:
		return Verifier{Header: WooCommerceHeader, Encoding: EncodingBase64}, true
	default:
		return Verifier{}, false
	}
}

// Verify reports whether header carries the HMAC of body under secret. body
// must be the bytes exactly as received. Missing inputs and undecodable
// headers are treated as a mismatch.
func (v Verifier) Verify(body []byte, header, secret string) bool {
	header = strings.TrimSpace(header)
	if header == "" || secret == "" {
		return false
	}

	var provided []byte
	var err error
	switch v.Encoding {
	case EncodingHex:
		provided, err = hex.DecodeString(header)
	default:
		provided, err = base64.StdEncoding.DecodeString(header)
	}
	if err != nil || len(provided) != sha256.Size {
		return false
	}

	return hmac.Equal(Sign(body, secret), provided)
}

// Sign returns the raw HMAC-SHA256 digest of body under secret.
func Sign(body []byte, secret string) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

// SignBase64 returns the digest in the header form both providers send.
func SignBase64(body []byte, secret string) string {
	return base64.StdEncoding.EncodeToString(Sign(body, secret))
}
