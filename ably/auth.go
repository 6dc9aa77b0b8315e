package ably

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
	"github.com/tidwall/gjson"
	"golang.org/x/sync/singleflight"
)

var (
	errMissingKey          = errors.New("missing key")
	errInvalidKey          = errors.New("invalid key")
	errMismatchedKeys      = errors.New("mismatched keys")
	errUnsupportedType     = errors.New("unsupported Content-Type header in response from AuthURL")
	errMissingType         = errors.New("missing Content-Type header in response from AuthURL")
	errUnknownTokenShape   = errors.New("response from AuthURL is neither a TokenDetails nor a TokenRequest")
	errInvalidCallbackType = errors.New("invalid value type returned from AuthCallback")
	errInsecureBasicAuth   = errors.New("basic auth is not supported on insecure non-TLS connections")
	errWildcardClientID    = errors.New("provided ClientID must not be a wildcard")
	errClientIDMismatch    = errors.New("the received ClientID does not match the requested one")
	errNoAuthMeans         = errors.New("no key, token, AuthCallback or AuthURL provided")
	errNoRenewalMeans      = errors.New("no key, AuthCallback or AuthURL provided to obtain a new token")
	errNoTokenInResponse   = errors.New("token request response carries no token")
)

const wildcardClientID = "*"

// Auth creates Ably tokens and authenticates the requests of a REST client.
type Auth struct {
	mu     sync.Mutex
	client *REST
	method int

	// params and overrides are persisted by Authorize and used for every
	// token requested implicitly afterwards.
	params    *TokenParams
	overrides authOptions

	token    *TokenDetails
	clientID string // clientID of the authenticated user or wildcard "*"
	host     string // host part of AuthURL

	renewal singleflight.Group
}

func newAuth(client *REST) (*Auth, error) {
	opts := client.opts
	a := &Auth{
		client:   client,
		clientID: opts.ClientID,
	}
	if opts.ClientID == wildcardClientID {
		return nil, newError(ErrIncompatibleCredentials, errWildcardClientID)
	}
	if opts.Key == "" && !opts.externalTokenAuthSupported() {
		return nil, newError(ErrNoAuthenticationMeans, errNoAuthMeans)
	}
	if opts.Key != "" {
		if _, _, err := splitKey(opts.Key); err != nil {
			return nil, err
		}
	}
	if opts.AuthURL != "" {
		u, err := url.Parse(opts.AuthURL)
		if err != nil {
			return nil, newError(ErrInvalidParameterValue, err)
		}
		a.host = u.Host
	}
	if opts.Key != "" && !opts.UseTokenAuth && opts.ClientID == "" {
		if opts.NoTLS {
			return nil, newError(ErrInvalidUseOfBasicAuthOverNonTLSTransport, errInsecureBasicAuth)
		}
		a.method = authBasic
	} else {
		a.method = authToken
	}
	switch {
	case opts.TokenDetails != nil:
		a.token = opts.TokenDetails
	case opts.Token != "":
		a.token = newTokenDetails(opts.Token)
	}
	return a, nil
}

// ClientID gives the identity of the client. It is empty for anonymous
// clients and for tokens issued with a wildcard client ID.
func (a *Auth) ClientID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.clientID != wildcardClientID {
		return a.clientID
	}
	return ""
}

// IsUsingBasicAuth reports whether requests are authenticated with the API
// key itself. Once a token has been obtained through Authorize it stays false.
func (a *Auth) IsUsingBasicAuth() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.method == authBasic
}

// CreateTokenRequest creates and signs a token request with the configured
// key, without contacting Ably. The result may be handed to any party that
// then exchanges it for a token.
func (a *Auth) CreateTokenRequest(ctx context.Context, params *TokenParams, opts ...AuthOption) (*TokenRequest, error) {
	return a.createTokenRequest(ctx, params, applyAuthOptionsWithDefaults(opts...))
}

func (a *Auth) createTokenRequest(ctx context.Context, params *TokenParams, perCall *authOptions) (*TokenRequest, error) {
	opts := a.mergedOptions(perCall)
	keyName, keySecret, err := splitKey(opts.Key)
	if err != nil {
		return nil, err
	}
	req := &TokenRequest{TokenParams: resolveTokenParams(params, opts)}
	if err := a.setDefaults(ctx, opts, req); err != nil {
		return nil, err
	}
	if err := signTokenRequest(req, keyName, keySecret); err != nil {
		return nil, err
	}
	return req, nil
}

// RequestToken obtains a new token. It does not change the token used by the
// client; see Authorize for that.
func (a *Auth) RequestToken(ctx context.Context, params *TokenParams, opts ...AuthOption) (*TokenDetails, error) {
	tok, _, err := a.requestToken(ctx, params, applyAuthOptionsWithDefaults(opts...))
	return tok, err
}

func (a *Auth) requestToken(ctx context.Context, params *TokenParams, perCall *authOptions) (tok *TokenDetails, tokReqClientID string, err error) {
	switch {
	case perCall.Token != "":
		return newTokenDetails(perCall.Token), "", nil
	case perCall.TokenDetails != nil:
		return perCall.TokenDetails, "", nil
	}
	opts := a.mergedOptions(perCall)
	var tokener Tokener
	switch {
	case opts.AuthCallback != nil:
		v, err := opts.AuthCallback(ctx, resolveTokenParams(params, opts))
		if err != nil {
			return nil, "", newError(ErrErrorFromClientTokenCallback, err)
		}
		tokener = v
	case opts.AuthURL != "":
		v, err := a.requestAuthURL(ctx, resolveTokenParams(params, opts), opts)
		if err != nil {
			return nil, "", err
		}
		tokener = v
	case opts.Key != "":
		req, err := a.createTokenRequest(ctx, params, perCall)
		if err != nil {
			return nil, "", err
		}
		tokener = req
	default:
		return nil, "", newError(ErrNoWayToRenewAuthToken, errNoRenewalMeans)
	}

	var tokReq *TokenRequest
	switch v := tokener.(type) {
	case *TokenDetails:
		return v, "", nil
	case TokenDetails:
		return &v, "", nil
	case TokenString:
		return newTokenDetails(string(v)), "", nil
	case *TokenRequest:
		tokReq = v
	case TokenRequest:
		tokReq = &v
	default:
		return nil, "", newError(ErrErrorFromClientTokenCallback, errInvalidCallbackType)
	}
	if tokReq.MAC == "" {
		keyName, keySecret, err := splitKey(opts.Key)
		if err != nil {
			return nil, "", err
		}
		if err := signTokenRequest(tokReq, keyName, keySecret); err != nil {
			return nil, "", err
		}
	}

	tok = &TokenDetails{}
	r := &request{
		Method: http.MethodPost,
		Path:   "/keys/" + url.PathEscape(tokReq.KeyName) + "/requestToken",
		In:     tokReq,
		Out:    tok,
		NoAuth: true,
	}
	if _, err := a.client.do(ctx, r); err != nil {
		return nil, "", err
	}
	if tok.Token == "" {
		return nil, "", newError(ErrUnauthorized, errNoTokenInResponse)
	}
	return tok, tokReq.ClientID, nil
}

// Authorize obtains a new token and makes the client use it, switching to
// token authentication for good. The given params and options are kept and
// used for every token the client requests implicitly afterwards.
func (a *Auth) Authorize(ctx context.Context, params *TokenParams, opts ...AuthOption) (*TokenDetails, error) {
	perCall := applyAuthOptionsWithDefaults(opts...)
	a.mu.Lock()
	if params != nil {
		p := *params
		p.Timestamp = 0
		a.params = &p
	}
	persisted := *perCall
	persisted.Token = ""
	persisted.TokenDetails = nil
	a.overrides = a.overrides.merge(&persisted)
	a.mu.Unlock()

	return a.authorizeInternal(ctx, params, perCall, true)
}

// authorizeInternal gives the cached token when it is still valid and force
// is false. Otherwise it requests a new token and replaces the cached one.
func (a *Auth) authorizeInternal(ctx context.Context, params *TokenParams, perCall *authOptions, force bool) (*TokenDetails, error) {
	if !force {
		if tok := a.validToken(); tok != nil {
			return tok, nil
		}
	}
	if params == nil {
		a.mu.Lock()
		params = a.params
		a.mu.Unlock()
	}
	tok, tokReqClientID, err := a.requestToken(ctx, params, perCall)
	if err != nil {
		return nil, err
	}
	if err := a.setToken(tok, tokReqClientID); err != nil {
		return nil, err
	}
	a.log().Infof("Auth: obtained new token expiring at %d", tok.Expires)
	return tok, nil
}

// ensureToken gives a valid token, renewing it if needed. Concurrent
// renewals share a single token request.
func (a *Auth) ensureToken(ctx context.Context) (*TokenDetails, error) {
	if tok := a.validToken(); tok != nil {
		return tok, nil
	}
	return a.sharedAuthorize(ctx, "renew", false)
}

// reauthorize replaces a token the service rejected.
func (a *Auth) reauthorize(ctx context.Context) (*TokenDetails, error) {
	return a.sharedAuthorize(ctx, "reauthorize", true)
}

// sharedAuthorize joins the in-flight authorization for key, starting one if
// none is running. The authorization outlives the caller that started it, so
// a cancelled caller does not fail the others waiting on it.
func (a *Auth) sharedAuthorize(ctx context.Context, key string, force bool) (*TokenDetails, error) {
	ch := a.renewal.DoChan(key, func() (interface{}, error) {
		ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), a.renewalTimeout())
		defer cancel()
		return a.authorizeInternal(ctx, nil, &authOptions{}, force)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*TokenDetails), nil
	case <-ctx.Done():
		return nil, newError(ErrInternalConnectionError, ctx.Err())
	}
}

// renewalTimeout bounds one authorization: a token request may go through
// every fallback host.
func (a *Auth) renewalTimeout() time.Duration {
	opts := a.client.opts
	return opts.httpRequestTimeout() * time.Duration(opts.HTTPMaxRetryCount+1)
}

func (a *Auth) validToken() *TokenDetails {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.token != nil && !a.token.expired(a.client.opts.now()) {
		return a.token
	}
	return nil
}

func (a *Auth) setToken(tok *TokenDetails, tokReqClientID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	// The ClientID set explicitly at construction must match the one the
	// token was issued for, unless either is a wildcard.
	if areClientIDsSet(a.client.opts.ClientID, tok.ClientID) && a.client.opts.ClientID != tok.ClientID {
		return newError(ErrInvalidClientID, errClientIDMismatch)
	}
	if areClientIDsSet(tokReqClientID, tok.ClientID) && tokReqClientID != tok.ClientID {
		return newError(ErrInvalidClientID, errClientIDMismatch)
	}
	a.method = authToken
	a.token = tok
	if tok.ClientID != "" {
		a.clientID = tok.ClientID
	}
	return nil
}

func areClientIDsSet(clientIDs ...string) bool {
	for _, s := range clientIDs {
		if s == "" || s == wildcardClientID {
			return false
		}
	}
	return true
}

// mergedOptions layers the options of a single call over those persisted by
// Authorize, over the construction options.
func (a *Auth) mergedOptions(perCall *authOptions) authOptions {
	a.mu.Lock()
	overrides := a.overrides
	a.mu.Unlock()
	return a.client.opts.authOptions.merge(&overrides).merge(perCall)
}

// resolveTokenParams fills params from the default token params. The client
// ID is taken from, in order: params, the auth options, the default params.
func resolveTokenParams(params *TokenParams, opts authOptions) TokenParams {
	var p TokenParams
	if params != nil {
		p = *params
	}
	clientID := p.ClientID
	if clientID == "" {
		clientID = opts.ClientID
	}
	p = p.merge(opts.DefaultTokenParams)
	if clientID != "" {
		p.ClientID = clientID
	}
	// Capabilities that don't parse are left for the service to reject.
	if c, err := ParseCapability(p.Capability); err == nil && len(c) > 0 {
		p.Capability = c.Encode()
	}
	return p
}

func (a *Auth) setDefaults(ctx context.Context, opts authOptions, req *TokenRequest) error {
	now := a.client.opts.now()
	if req.Nonce == "" {
		req.Nonce = ablyutil.Nonce(now)
	}
	if req.Timestamp == 0 {
		if opts.UseQueryTime {
			t, err := a.client.Time(ctx)
			if err != nil {
				return newError(ErrUnauthorized, err)
			}
			req.Timestamp = unixMilli(t)
		} else {
			req.Timestamp = unixMilli(now)
		}
	}
	return nil
}

// splitKey parses an API key of the form "appId.keyId:keySecret".
func splitKey(key string) (keyName, keySecret string, err error) {
	if key == "" {
		return "", "", newError(ErrInvalidCredentials, errMissingKey)
	}
	parts := strings.Split(key, ":")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", newError(ErrInvalidCredential, errInvalidKey)
	}
	return parts[0], parts[1], nil
}

func signTokenRequest(req *TokenRequest, keyName, keySecret string) error {
	if req.KeyName == "" {
		req.KeyName = keyName
	} else if req.KeyName != keyName {
		return newError(ErrIncompatibleCredentials, errMismatchedKeys)
	}
	req.sign([]byte(keySecret))
	return nil
}

func (a *Auth) requestAuthURL(ctx context.Context, params TokenParams, opts authOptions) (Tokener, error) {
	u, err := url.Parse(opts.AuthURL)
	if err != nil {
		return nil, a.newError(ErrInvalidParameterValue, err)
	}
	query := make(url.Values)
	for k, v := range opts.AuthParams {
		query[k] = v
	}
	for k, v := range params.Query() {
		query[k] = v
	}
	var body io.Reader
	method := opts.authMethod()
	switch method {
	case http.MethodGet:
		q := u.Query()
		for k, v := range query {
			q[k] = v
		}
		u.RawQuery = q.Encode()
	case http.MethodPost:
		body = strings.NewReader(query.Encode())
	default:
		return nil, a.newError(ErrMethodNotAllowed, fmt.Errorf("unsupported AuthMethod %q", method))
	}

	ctx, cancel := context.WithTimeout(ctx, a.client.opts.httpRequestTimeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, a.newError(ErrBadRequest, err)
	}
	for k, v := range opts.AuthHeaders {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	resp, err := a.client.httpClient.Do(req)
	if err != nil {
		return nil, a.newError(ErrErrorFromClientTokenCallback, err)
	}
	if err = checkValidHTTPResponse(resp); err != nil {
		return nil, a.newError(ErrErrorFromClientTokenCallback, err)
	}
	defer resp.Body.Close()
	p, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, a.newError(ErrErrorFromClientTokenCallback, err)
	}
	switch typ := mediaType(resp.Header.Get("Content-Type")); typ {
	case "text/plain", "application/jwt":
		return TokenString(strings.TrimSpace(string(p))), nil
	case protocolJSON:
		if !gjson.ValidBytes(p) {
			return nil, a.newError(ErrErrorFromClientTokenCallback, errUnknownTokenShape)
		}
		obj := gjson.ParseBytes(p)
		return a.decodeTokener(typ, p, obj.Get("mac").Exists(), obj.Get("issued").Exists() || obj.Get("token").Exists())
	case protocolMsgPack:
		var shape map[string]interface{}
		if err := decodeMsgpack(p, &shape); err != nil {
			return nil, a.newError(ErrErrorFromClientTokenCallback, err)
		}
		_, hasMAC := shape["mac"]
		_, hasIssued := shape["issued"]
		_, hasToken := shape["token"]
		return a.decodeTokener(typ, p, hasMAC, hasIssued || hasToken)
	case "":
		return nil, a.newError(ErrErrorFromClientTokenCallback, errMissingType)
	default:
		return nil, a.newError(ErrErrorFromClientTokenCallback, errUnsupportedType)
	}
}

func (a *Auth) decodeTokener(typ string, p []byte, isRequest, isDetails bool) (Tokener, error) {
	switch {
	case isRequest:
		var req TokenRequest
		if err := decode(typ, p, &req); err != nil {
			return nil, a.newError(ErrErrorFromClientTokenCallback, err)
		}
		return &req, nil
	case isDetails:
		var tok TokenDetails
		if err := decode(typ, p, &tok); err != nil {
			return nil, a.newError(ErrErrorFromClientTokenCallback, err)
		}
		return &tok, nil
	default:
		return nil, a.newError(ErrErrorFromClientTokenCallback, errUnknownTokenShape)
	}
}

func (a *Auth) newError(code ErrorCode, err error) error {
	e := newError(code, err)
	e.Server = a.host
	return e
}

// authorization gives the Authorization header value for a request.
func (a *Auth) authorization(ctx context.Context) (string, error) {
	if a.IsUsingBasicAuth() {
		return "Basic " + base64.StdEncoding.EncodeToString([]byte(a.client.opts.Key)), nil
	}
	tok, err := a.ensureToken(ctx)
	if err != nil {
		return "", err
	}
	return "Bearer " + base64.StdEncoding.EncodeToString([]byte(tok.Token)), nil
}

func (a *Auth) log() logger {
	return a.client.log
}
