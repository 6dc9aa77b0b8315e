package ably

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/url"
	"strconv"
	"time"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
)

// tokenExpiryMargin is subtracted from a token's expiry before comparing it
// with the current time, so a token about to expire mid-request is renewed.
const tokenExpiryMargin = 15 * time.Second

// Capability maps a resource (channel name or wildcard) to the operations
// allowed on it.
type Capability map[string][]string

// ParseCapability
func ParseCapability(capability string) (c Capability, err error) {
	c = make(Capability)
	err = json.Unmarshal([]byte(capability), &c)
	return
}

// Encode gives the canonical JSON form: resources and their operations sorted.
func (c Capability) Encode() string {
	if len(c) == 0 {
		return ""
	}
	canonical := make(map[string][]string, len(c))
	for resource, ops := range c {
		canonical[resource] = ablyutil.Sort(ops)
	}
	p, err := json.Marshal(canonical)
	if err != nil {
		panic(err)
	}
	return string(p)
}

// TokenParams
type TokenParams struct {
	// TTL is a requested time to live for the token in milliseconds. If the
	// token request is successful, the TTL of the returned token will be less
	// than or equal to this value depending on application settings and the
	// attributes of the issuing key.
	TTL int64 `json:"ttl,omitempty" codec:"ttl,omitempty"`

	// Capability represents encoded access rights of the token.
	Capability string `json:"capability,omitempty" codec:"capability,omitempty"`

	// ClientID represents a client, whom the token is generated for.
	ClientID string `json:"clientId,omitempty" codec:"clientId,omitempty"`

	// Timestamp of the token request. It's used, in conjunction with the nonce,
	// to prevent token requests from being replayed.
	Timestamp int64 `json:"timestamp,omitempty" codec:"timestamp,omitempty"`
}

// Query encodes the params to query params value. If a field of params is
// a zero-value, it's omitted. If params is nil, an empty value is returned.
func (params *TokenParams) Query() url.Values {
	q := make(url.Values)
	if params == nil {
		return q
	}
	if params.TTL != 0 {
		q.Set("ttl", strconv.FormatInt(params.TTL, 10))
	}
	if params.Capability != "" {
		q.Set("capability", params.Capability)
	}
	if params.ClientID != "" {
		q.Set("clientId", params.ClientID)
	}
	if params.Timestamp != 0 {
		q.Set("timestamp", strconv.FormatInt(params.Timestamp, 10))
	}
	return q
}

// merge fills the zero fields of params from defaults.
func (params TokenParams) merge(defaults *TokenParams) TokenParams {
	if defaults == nil {
		return params
	}
	merged := *defaults
	ablyutil.Merge(&merged, &params)
	return merged
}

// TokenRequest is a signed request for a token, which can be handed to any
// party able to POST it to Ably's requestToken endpoint.
type TokenRequest struct {
	TokenParams `codec:",inline"`

	KeyName string `json:"keyName,omitempty" codec:"keyName,omitempty"`
	Nonce   string `json:"nonce,omitempty" codec:"nonce,omitempty"` // should be at least 16 characters long
	MAC     string `json:"mac,omitempty" codec:"mac,omitempty"`     // message authentication code for the request
}

func (TokenRequest) IsTokener() {}
func (TokenRequest) isTokener() {}

// sign computes the MAC over the newline-terminated fields. Zero fields are
// written as empty strings. A MAC that is already set is left alone.
func (req *TokenRequest) sign(secret []byte) {
	if req.MAC != "" {
		return
	}
	req.MAC = req.computeMAC(secret)
}

func (req *TokenRequest) computeMAC(secret []byte) string {
	mac := hmac.New(sha256.New, secret)
	for _, field := range []string{
		req.KeyName,
		formatOptionalInt(req.TTL),
		req.Capability,
		req.ClientID,
		formatOptionalInt(req.Timestamp),
		req.Nonce,
	} {
		io.WriteString(mac, field+"\n")
	}
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func formatOptionalInt(n int64) string {
	if n == 0 {
		return ""
	}
	return strconv.FormatInt(n, 10)
}

// TokenDetails
type TokenDetails struct {
	// Token
	Token string `json:"token,omitempty" codec:"token,omitempty"`

	// KeyName
	KeyName string `json:"keyName,omitempty" codec:"keyName,omitempty"`

	// Expires is the expiry time in milliseconds since epoch; zero if unknown.
	Expires int64 `json:"expires,omitempty" codec:"expires,omitempty"`

	// ClientID
	ClientID string `json:"clientId,omitempty" codec:"clientId,omitempty"`

	// Issued
	Issued int64 `json:"issued,omitempty" codec:"issued,omitempty"`

	// Capability
	Capability string `json:"capability,omitempty" codec:"capability,omitempty"`
}

func (TokenDetails) IsTokener() {}
func (TokenDetails) isTokener() {}

// expired reports whether the token should be treated as unusable at now,
// allowing for tokenExpiryMargin. A token with an unknown expiry never is.
func (tok *TokenDetails) expired(now time.Time) bool {
	if tok.Expires == 0 {
		return false
	}
	return tok.Expires-tokenExpiryMargin.Milliseconds() <= unixMilli(now)
}

func (tok *TokenDetails) IssueTime() time.Time {
	return time.UnixMilli(tok.Issued)
}

func (tok *TokenDetails) ExpireTime() time.Time {
	return time.UnixMilli(tok.Expires)
}

func newTokenDetails(token string) *TokenDetails {
	return &TokenDetails{
		Token: token,
	}
}

// A Tokener is or can be used to get a TokenDetails.
type Tokener interface {
	IsTokener()
	isTokener()
}

// A TokenString is the string representation of an authentication token.
type TokenString string

func (TokenString) IsTokener() {}
func (TokenString) isTokener() {}

func unixMilli(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
