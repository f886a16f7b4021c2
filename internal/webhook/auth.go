// Package webhook authenticates inbound delivery-status callbacks from the
// message gateway before they reach the engine.
package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/alcast-trading/rfq-engine/internal/metrics"
	"github.com/alcast-trading/rfq-engine/internal/rfq"
)

// maxTimestampSkew is how far a signed timestamp may drift from server time
// in either direction before the callback is rejected as a replay.
const maxTimestampSkew = 300 * time.Second

// Result names how a callback was authenticated.
type Result string

const (
	ResultTrusted   Result = "trusted"
	ResultSignature Result = "signature"
	ResultAPIKey    Result = "api_key"
	ResultRejected  Result = "rejected"
)

// Authenticator verifies gateway callbacks with an HMAC-SHA256 body
// signature or a shared api key. An empty secret disables verification
// (local development against an unsigned gateway).
type Authenticator struct {
	secret string
	now    func() time.Time
}

func NewAuthenticator(secret string) *Authenticator {
	return &Authenticator{
		secret: secret,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Authenticate checks a callback. signature is the hex HMAC-SHA256 of the
// raw body (an "algorithm=" prefix such as "sha256=" is tolerated), apiKey
// is the shared-key fallback, timestamp is the optional unix-seconds replay
// guard. The timestamp is checked whenever present, even when the signature
// itself is valid.
func (a *Authenticator) Authenticate(signature, apiKey, timestamp string, body []byte) (Result, error) {
	if a.secret == "" {
		metrics.IncWebhookAuth(string(ResultTrusted))
		return ResultTrusted, nil
	}

	if timestamp != "" {
		if err := a.checkTimestamp(timestamp); err != nil {
			metrics.IncWebhookAuth(string(ResultRejected))
			return ResultRejected, err
		}
	}

	if signature != "" && validSignature(a.secret, signature, body) {
		metrics.IncWebhookAuth(string(ResultSignature))
		return ResultSignature, nil
	}

	if apiKey != "" && subtle.ConstantTimeCompare([]byte(apiKey), []byte(a.secret)) == 1 {
		metrics.IncWebhookAuth(string(ResultAPIKey))
		return ResultAPIKey, nil
	}

	metrics.IncWebhookAuth(string(ResultRejected))
	return ResultRejected, fmt.Errorf("%w: webhook signature verification failed", rfq.ErrAuth)
}

func (a *Authenticator) checkTimestamp(timestamp string) error {
	ts, err := strconv.ParseInt(strings.TrimSpace(timestamp), 10, 64)
	if err != nil {
		return fmt.Errorf("%w: malformed webhook timestamp", rfq.ErrAuth)
	}
	drift := a.now().Sub(time.Unix(ts, 0))
	if drift < 0 {
		drift = -drift
	}
	if drift > maxTimestampSkew {
		return fmt.Errorf("%w: webhook timestamp outside allowed window", rfq.ErrAuth)
	}
	return nil
}

func validSignature(secret, signature string, body []byte) bool {
	normalized := strings.TrimSpace(signature)
	if i := strings.IndexByte(normalized, '='); i >= 0 {
		normalized = normalized[i+1:]
	}
	expected, err := hex.DecodeString(normalized)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(body)
	return hmac.Equal(mac.Sum(nil), expected)
}
