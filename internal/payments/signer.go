package payments

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"errors"
	"net/url"
	"sort"
	"strings"
)

// Gateway query parameter names.
const (
	ParamVersion        = "vnp_Version"
	ParamCommand        = "vnp_Command"
	ParamTmnCode        = "vnp_TmnCode"
	ParamAmount         = "vnp_Amount"
	ParamCurrCode       = "vnp_CurrCode"
	ParamTxnRef         = "vnp_TxnRef"
	ParamOrderInfo      = "vnp_OrderInfo"
	ParamOrderType      = "vnp_OrderType"
	ParamLocale         = "vnp_Locale"
	ParamReturnURL      = "vnp_ReturnUrl"
	ParamIPAddr         = "vnp_IpAddr"
	ParamCreateDate     = "vnp_CreateDate"
	ParamExpireDate     = "vnp_ExpireDate"
	ParamResponseCode   = "vnp_ResponseCode"
	ParamTransactionNo  = "vnp_TransactionNo"
	ParamSecureHash     = "vnp_SecureHash"
	ParamSecureHashType = "vnp_SecureHashType"
)

// ResponseCodeSuccess is the gateway code for a completed payment.
const ResponseCodeSuccess = "00"

// Signer computes and checks HMAC-SHA512 signatures over canonical parameter sets.
type Signer struct {
	secret []byte
}

// NewSigner builds a signer for the merchant hash secret.
func NewSigner(secret string) (*Signer, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("hash secret is required")
	}
	return &Signer{secret: []byte(secret)}, nil
}

// Canonical renders params sorted by key as k=v pairs joined by '&', with keys
// and values query-escaped. Signature fields and empty values are skipped.
func Canonical(params url.Values) string {
	keys := make([]string, 0, len(params))
	for key := range params {
		if key == ParamSecureHash || key == ParamSecureHashType {
			continue
		}
		if params.Get(key) == "" {
			continue
		}
		keys = append(keys, key)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, key := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(key))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params.Get(key)))
	}
	return b.String()
}

// Sign returns the lowercase hex HMAC-SHA512 of the canonical form of params.
func (s *Signer) Sign(params url.Values) string {
	mac := hmac.New(sha512.New, s.secret)
	mac.Write([]byte(Canonical(params)))
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify recomputes the signature of params and compares it in constant time
// with the supplied vnp_SecureHash.
func (s *Signer) Verify(params url.Values) bool {
	provided := strings.ToLower(strings.TrimSpace(params.Get(ParamSecureHash)))
	if provided == "" {
		return false
	}
	expected := s.Sign(params)
	return hmac.Equal([]byte(provided), []byte(expected))
}
