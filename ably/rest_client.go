package ably

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

// REST is the client for Ably's REST API. It is safe for concurrent use.
type REST struct {
	// Auth manages the credentials used by the client.
	Auth *Auth

	// Channels is the registry of channels used by the client.
	Channels *RESTChannels

	// Push gives access to the push notification administration API.
	Push *Push

	opts       *clientOptions
	hosts      *restHosts
	httpClient *http.Client
	log        logger
	agent      string
}

// NewREST constructs a new REST client.
func NewREST(options ...ClientOption) (*REST, error) {
	opts := applyOptionsWithDefaults(options...)
	if err := opts.validate(); err != nil {
		return nil, err
	}
	c := &REST{
		opts:       opts,
		hosts:      newRestHosts(opts),
		httpClient: opts.httpclient(),
		log:        logger{l: opts.loggerOptions()},
		agent:      ablyAgentIdentifier(opts.Agents),
	}
	auth, err := newAuth(c)
	if err != nil {
		return nil, err
	}
	c.Auth = auth
	c.Channels = newRESTChannels(c)
	c.Push = newPush(c)
	return c, nil
}

// NewRESTWithKey constructs a REST client authenticating with an API key of
// the form "appId.keyId:keySecret".
func NewRESTWithKey(key string, options ...ClientOption) (*REST, error) {
	return NewREST(append([]ClientOption{WithKey(key)}, options...)...)
}

// Time asks the Ably service for its current time. The request is not
// authenticated.
func (c *REST) Time(ctx context.Context) (time.Time, error) {
	var times []int64
	r := &request{
		Method: http.MethodGet,
		Path:   "/time",
		Out:    &times,
		NoAuth: true,
	}
	if _, err := c.do(ctx, r); err != nil {
		return time.Time{}, err
	}
	if len(times) != 1 {
		return time.Time{}, newErrorf(ErrInternalError, "expected 1 timestamp, got %d", len(times))
	}
	return time.UnixMilli(times[0]), nil
}

// Stats queries the application's usage statistics.
func (c *REST) Stats(ctx context.Context, options ...StatsOption) (*PaginatedResult[*Stats], error) {
	var o statsOptions
	for _, set := range options {
		set(&o)
	}
	query := pageQuery[*Stats]{
		client: c,
		decode: decodeItems[*Stats],
	}
	return query.load(ctx, "/stats", o.values())
}

// RequestOption configures a call to REST.Request.
type RequestOption func(*requestOptions)

type requestOptions struct {
	params  url.Values
	headers http.Header
	body    interface{}
}

// RequestWithParams adds query parameters to the request.
func RequestWithParams(params url.Values) RequestOption {
	return func(o *requestOptions) {
		o.params = params
	}
}

// RequestWithHeaders adds headers to the request.
func RequestWithHeaders(headers http.Header) RequestOption {
	return func(o *requestOptions) {
		o.headers = headers
	}
}

// RequestWithBody sets the request body. It is encoded with the client's
// protocol.
func RequestWithBody(body interface{}) RequestOption {
	return func(o *requestOptions) {
		o.body = body
	}
}

// Request sends an authenticated request to any path of the REST API, going
// through the same fallback and token renewal logic as every other call.
//
// A response with a non-2xx status is reported through the returned
// HTTPPaginatedResponse rather than as an error. An error is returned only
// when no response could be obtained at all.
func (c *REST) Request(ctx context.Context, method, path string, options ...RequestOption) (*HTTPPaginatedResponse, error) {
	method = strings.ToUpper(method)
	switch method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
	default:
		return nil, newErrorf(ErrMethodNotAllowed, "Request: unsupported method %q", method)
	}
	var o requestOptions
	for _, set := range options {
		set(&o)
	}
	query := pageQuery[json.RawMessage]{
		client:          c,
		method:          method,
		header:          o.headers,
		body:            o.body,
		decode:          decodeRawItems,
		keepErrorStatus: true,
	}
	page, err := query.load(ctx, path, o.params)
	if err != nil {
		return nil, err
	}
	return newHTTPPaginatedResponse(page), nil
}

type request struct {
	Method string
	Path   string // may carry a query string
	Params url.Values
	In     interface{} // value to be encoded and sent with request body
	Out    interface{} // value to store decoded response body
	Header http.Header

	// NoAuth is set for requests that must not be authenticated, such as
	// the token request itself. This bounds the recursion between Auth and
	// the client.
	NoAuth bool
}

type response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

// requestState tells whether a request is being sent for the first time or
// retried after its token was rejected. A retried request never triggers
// another reauthorization.
type requestState int

const (
	requestFresh requestState = iota
	requestRetrying
)

func (c *REST) do(ctx context.Context, r *request) (*response, error) {
	var requestID string
	if c.opts.AddRequestIDs {
		requestID = uuid.NewString()
	}
	resp, err := c.doWithState(ctx, r, requestID, requestFresh)
	if err != nil {
		if requestID != "" {
			c.log.Errorf("Request %s %s (request_id=%s) failed: %v", r.Method, r.Path, requestID, err)
		}
		return nil, err
	}
	if r.Out != nil && len(resp.Body) > 0 {
		if err := decode(mediaType(resp.Header.Get("Content-Type")), resp.Body, r.Out); err != nil {
			return nil, newError(ErrProtocolError, err)
		}
	}
	return resp, nil
}

func (c *REST) doWithState(ctx context.Context, r *request, requestID string, state requestState) (*response, error) {
	var authorization string
	if !r.NoAuth {
		var err error
		if authorization, err = c.Auth.authorization(ctx); err != nil {
			return nil, err
		}
	}
	resp, err := c.doWithFallback(ctx, r, authorization, requestID)
	if err == nil {
		return resp, nil
	}
	if state == requestFresh && !r.NoAuth && !c.Auth.IsUsingBasicAuth() && isTokenError(err) {
		c.log.Warnf("Request %s %s: token rejected (%v); reauthorizing and retrying once", r.Method, r.Path, err)
		if _, err := c.Auth.reauthorize(ctx); err != nil {
			return nil, err
		}
		return c.doWithState(ctx, r, requestID, requestRetrying)
	}
	return nil, err
}

// doWithFallback sends r to the primary host and, on connectivity failures,
// to fallback hosts until one answers or the retry budget is spent.
func (c *REST) doWithFallback(ctx context.Context, r *request, authorization, requestID string) (*response, error) {
	hosts, cached := c.hosts.candidates()
	maxAttempts := c.hosts.maxAttempts(c.opts, hosts)
	var lastErr error
	for i, host := range hosts[:maxAttempts] {
		resp, err := c.doRequest(ctx, host, r, authorization, requestID)
		if err == nil {
			if i > 0 && host != c.hosts.getPrimaryHost() {
				c.hosts.cache.put(host)
			}
			return resp, nil
		}
		if host == cached {
			c.hosts.cache.evict(host)
		}
		if !isConnectivityError(err) {
			return nil, err
		}
		lastErr = err
		if ctx.Err() != nil {
			break
		}
		if i+1 < maxAttempts {
			c.log.Warnf("Request %s %s: host %s failed (%v); trying fallback host %s", r.Method, r.Path, host, err, hosts[i+1])
		}
	}
	return nil, lastErr
}

func (c *REST) doRequest(ctx context.Context, host string, r *request, authorization, requestID string) (*response, error) {
	u, err := url.Parse(c.opts.restURL(host) + r.Path)
	if err != nil {
		return nil, newError(ErrBadRequest, err)
	}
	query := u.Query()
	for k, v := range r.Params {
		query[k] = v
	}
	if requestID != "" {
		query.Set(requestIDParam, requestID)
	}
	u.RawQuery = query.Encode()

	protocol := c.opts.protocol()
	var body io.Reader
	if r.In != nil {
		p, err := encode(protocol, r.In)
		if err != nil {
			return nil, newError(ErrInvalidRequestBody, err)
		}
		body = bytes.NewReader(p)
	}

	ctx, cancel := context.WithTimeout(ctx, c.opts.httpRequestTimeout())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, r.Method, u.String(), body)
	if err != nil {
		return nil, newError(ErrBadRequest, err)
	}
	for k, v := range r.Header {
		req.Header[k] = v
	}
	if body != nil {
		req.Header.Set("Content-Type", protocol)
	}
	req.Header.Set("Accept", protocol)
	req.Header.Set(ablyProtocolVersionHeader, ablyProtocolVersion)
	req.Header.Set(ablyAgentHeader, c.agent)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
		if clientID := c.Auth.ClientID(); clientID != "" {
			req.Header.Set(ablyClientIDHeader, base64.StdEncoding.EncodeToString([]byte(clientID)))
		}
	}

	c.log.Verbosef("RestClient: %s %s", r.Method, u.String())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, newTransportError(err)
	}
	if err := checkValidHTTPResponse(resp); err != nil {
		c.log.Debugf("RestClient: %s %s: %v", r.Method, u.String(), err)
		return nil, err
	}
	defer resp.Body.Close()
	p, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newTransportError(err)
	}
	return &response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Body:       p,
	}, nil
}

// errorResponse gives the response an ErrorInfo was built from, if any.
func errorResponse(err error) (*response, bool) {
	var info *ErrorInfo
	if !errors.As(err, &info) || info.Raw == nil {
		return nil, false
	}
	return &response{
		StatusCode: info.Raw.StatusCode,
		Header:     info.Raw.Header,
		Body:       info.Raw.Body,
	}, true
}
