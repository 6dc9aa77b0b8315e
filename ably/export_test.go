package ably

import (
	"context"
	"net/http"
	"time"
)

const TokenExpiryMargin = tokenExpiryMargin

func WithNow(now func() time.Time) ClientOption {
	return func(os *clientOptions) {
		os.now = now
	}
}

func (c *REST) CachedFallbackHost() string {
	return c.hosts.cache.get()
}

func (c *REST) FallbackHosts() []string {
	return append([]string(nil), c.hosts.fallbacks...)
}

func (c *REST) PrimaryHost() string {
	return c.hosts.getPrimaryHost()
}

// CandidateHosts gives the hosts the next request would be sent to, in order.
func (c *REST) CandidateHosts() []string {
	hosts, _ := c.hosts.candidates()
	return hosts[:c.hosts.maxAttempts(c.opts, hosts)]
}

// MaxAttempts gives the number of hosts the next request may be sent to.
func (c *REST) MaxAttempts() int {
	hosts, _ := c.hosts.candidates()
	return c.hosts.maxAttempts(c.opts, hosts)
}

func (c *REST) RestURL(host string) string {
	return c.opts.restURL(host)
}

func (c *REST) AgentHeader() string {
	return c.agent
}

func (a *Auth) CachedToken() *TokenDetails {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.token
}

func (a *Auth) AuthorizationHeader(ctx context.Context) (string, error) {
	return a.authorization(ctx)
}

func (req *TokenRequest) ComputeMAC(secret []byte) string {
	return req.computeMAC(secret)
}

func (req *TokenRequest) Sign(secret []byte) {
	req.sign(secret)
}

func (tok *TokenDetails) Expired(now time.Time) bool {
	return tok.expired(now)
}

func BuildPath(base, rel string) string {
	return buildPath(base, rel)
}

func UnwrapErrorCode(err error) ErrorCode {
	return code(err)
}

func UnwrapStatusCode(err error) int {
	return statusCode(err)
}

func IsTokenError(err error) bool {
	return isTokenError(err)
}

func NewErrorInfo(code ErrorCode, err error) *ErrorInfo {
	return newError(code, err)
}

func ErrorFromResponse(status int, header http.Header, body []byte) *ErrorInfo {
	return errorFromResponse(status, header, body)
}

// EncodeMessage gives m as it would be sent on a channel with the given
// cipher, nil for none.
func EncodeMessage(m Message, cipher *CipherParams, binary bool) (Message, error) {
	var c channelCipher
	if cipher != nil {
		cc, err := newCBCCipher(*cipher)
		if err != nil {
			return Message{}, err
		}
		c = cc
	}
	return m.withEncodedData(c, binary)
}

// DecodeMessage is the inverse of EncodeMessage.
func DecodeMessage(m Message, cipher *CipherParams, dctx *DecodingContext) (Message, error) {
	var c channelCipher
	if cipher != nil {
		cc, err := newCBCCipher(*cipher)
		if err != nil {
			return Message{}, err
		}
		c = cc
	}
	return m.withDecodedData(c, dctx)
}

// CipherParamsWithIV gives params that encrypt with a fixed IV.
func CipherParamsWithIV(params CipherParams, iv []byte) CipherParams {
	params.iv = iv
	return params
}

func AgentIdentifier(agents map[string]string) string {
	return ablyAgentIdentifier(agents)
}
