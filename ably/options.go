package ably

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ably/ably-rest-go/ably/internal/ablyutil"
)

const (
	protocolJSON    = "application/json"
	protocolMsgPack = "application/x-msgpack"

	// restHost is the primary ably host.
	restHost = "rest.ably.io"
)

var defaultOptions = clientOptions{
	RESTHost:             restHost,
	HTTPMaxRetryCount:    3,
	HTTPRequestTimeout:   10 * time.Second,
	HTTPOpenTimeout:      4 * time.Second,
	FallbackRetryTimeout: 10 * time.Minute,
	Port:                 80,
	TLSPort:              443,
	LogLevel:             LogWarning,
}

func defaultFallbackHosts() []string {
	return []string{
		"a.ably-realtime.com",
		"b.ably-realtime.com",
		"c.ably-realtime.com",
		"d.ably-realtime.com",
		"e.ably-realtime.com",
	}
}

func getEnvFallbackHosts(env string) []string {
	return []string{
		env + "-a-fallback.ably-realtime.com",
		env + "-b-fallback.ably-realtime.com",
		env + "-c-fallback.ably-realtime.com",
		env + "-d-fallback.ably-realtime.com",
		env + "-e-fallback.ably-realtime.com",
	}
}

const (
	authBasic = 1 + iota
	authToken
)

// authOptions holds the credential settings shared by client construction and
// explicit calls to Auth.Authorize, Auth.RequestToken and
// Auth.CreateTokenRequest.
type authOptions struct {
	// AuthCallback is called in order to obtain a signed token request, a
	// token, or token details.
	//
	// This enables a client to obtain token requests from another entity,
	// so tokens can be renewed without the client requiring access to keys.
	AuthCallback func(context.Context, TokenParams) (Tokener, error)

	// URL which is queried to obtain a signed token request.
	//
	// If AuthURL is non-empty and AuthCallback is nil, the library builds a
	// request against the given AuthURL in order to obtain an authentication
	// token. The response is expected to carry a single token string when
	// Content-Type is "text/plain", or a JSON (or msgpack) encoded TokenDetails
	// or TokenRequest otherwise.
	//
	// GET requests carry TokenParams and AuthParams in the query string; POST
	// requests carry them form-encoded in the body. AuthHeaders are added to
	// both.
	AuthURL string

	// Key obtained from the dashboard, in the form "appId.keyId:keySecret".
	Key string

	// Token is an authentication token issued for this application against
	// a specific key and TokenParams.
	Token string

	// TokenDetails is an authentication token issued for this application against
	// a specific key and TokenParams.
	TokenDetails *TokenDetails

	// AuthMethod specifies which method, GET or POST, is used to query AuthURL.
	//
	// If empty, GET is used by default.
	AuthMethod string

	// AuthHeaders are HTTP request headers to be included in any request made
	// to the AuthURL.
	AuthHeaders http.Header

	// AuthParams are HTTP query parameters to be included in any request made
	// to the AuthURL.
	AuthParams url.Values

	// UseQueryTime when set to true, the time queried from Ably servers will
	// be used to sign the TokenRequest instead of using local time.
	UseQueryTime bool

	// DefaultTokenParams are used for every token request unless overridden
	// by the params of a specific call.
	DefaultTokenParams *TokenParams

	// UseTokenAuth makes the client always use token authentication.
	UseTokenAuth bool

	// ClientID identifies the client. At construction it is the client's own
	// identity; on an explicit authorize call it overrides it for the tokens
	// requested from then on.
	ClientID string
}

func (opts *authOptions) externalTokenAuthSupported() bool {
	return !(opts.Token == "" && opts.TokenDetails == nil && opts.AuthCallback == nil && opts.AuthURL == "")
}

// merge copies every non-zero field of extra over opts.
func (opts authOptions) merge(extra *authOptions) authOptions {
	ablyutil.Merge(&opts, extra)
	return opts
}

func (opts *authOptions) authMethod() string {
	if opts.AuthMethod != "" {
		return opts.AuthMethod
	}
	return http.MethodGet
}

type clientOptions struct {
	authOptions

	RESTHost    string // optional; overwrite endpoint hostname for REST client
	Environment string // optional; prefixes the hostname with the environment string
	Port        int    // optional: port to use for non-TLS requests
	TLSPort     int    // optional: port to use for TLS requests
	NoTLS       bool   // when true the REST client won't use TLS

	// FallbackHosts overrides the hosts tried when the primary host fails.
	// fallbackHostsSet distinguishes an explicit empty list from no setting.
	FallbackHosts    []string
	fallbackHostsSet bool

	// HTTPMaxRetryCount is the maximum number of fallback hosts tried.
	HTTPMaxRetryCount int

	// HTTPRequestTimeout bounds each HTTP request, including reading the body.
	HTTPRequestTimeout time.Duration

	// HTTPOpenTimeout bounds establishing the connection. It only applies to
	// the HTTP client the library creates itself.
	HTTPOpenTimeout time.Duration

	// FallbackRetryTimeout is how long a fallback host that succeeded keeps
	// being preferred over the primary host.
	FallbackRetryTimeout time.Duration

	// HTTPClient specifies the client used for HTTP communication by REST.
	HTTPClient *http.Client

	// UseBinaryProtocol switches the wire format from JSON to msgpack.
	UseBinaryProtocol bool

	// IdempotentRESTPublishing assigns message ids client-side, so publishes
	// retried on a fallback host are not duplicated.
	IdempotentRESTPublishing bool

	// AddRequestIDs adds a request_id query parameter to every request.
	AddRequestIDs bool

	// Agents are appended to the Ably-Agent header as name/version pairs.
	Agents map[string]string

	LogLevel   LogLevel
	LogHandler Logger

	VCDiffPlugin VCDiffDecoder

	// now is replaceable in tests.
	now func() time.Time
}

// A ClientOption configures a REST client.
type ClientOption func(*clientOptions)

// An AuthOption configures a single call to an Auth method.
type AuthOption func(*authOptions)

func applyOptionsWithDefaults(opts ...ClientOption) *clientOptions {
	to := defaultOptions
	for _, set := range opts {
		set(&to)
	}
	if to.now == nil {
		to.now = time.Now
	}
	return &to
}

func applyAuthOptionsWithDefaults(opts ...AuthOption) *authOptions {
	to := &authOptions{}
	for _, set := range opts {
		set(to)
	}
	return to
}

func (opts *clientOptions) validate() error {
	if opts.Environment != "" && opts.RESTHost != "" && opts.RESTHost != restHost {
		return newErrorf(ErrInvalidParameterValue, "cannot set both Environment and RESTHost")
	}
	if opts.HTTPMaxRetryCount < 0 {
		return newErrorf(ErrInvalidParameterValue, "HTTPMaxRetryCount must not be negative")
	}
	if _, err := opts.getFallbackHosts(); err != nil {
		return newError(ErrInvalidParameterValue, err)
	}
	return nil
}

func (opts *clientOptions) isProductionEnvironment() bool {
	env := opts.Environment
	return env == "" || strings.EqualFold(env, "production")
}

func (opts *clientOptions) hasCustomRESTHost() bool {
	return opts.RESTHost != "" && opts.RESTHost != restHost
}

func (opts *clientOptions) activePort() (port int, isDefault bool) {
	if opts.NoTLS {
		port = opts.Port
		if port == 0 {
			port = defaultOptions.Port
		}
		return port, port == defaultOptions.Port
	}
	port = opts.TLSPort
	if port == 0 {
		port = defaultOptions.TLSPort
	}
	return port, port == defaultOptions.TLSPort
}

func (opts *clientOptions) getPrimaryRestHost() string {
	if opts.hasCustomRESTHost() {
		return opts.RESTHost
	}
	if !opts.isProductionEnvironment() {
		return opts.Environment + "-" + restHost
	}
	return restHost
}

// getFallbackHosts gives the configured fallback hosts, unshuffled. Hosts
// are only defaulted when no custom host or port is in use.
func (opts *clientOptions) getFallbackHosts() ([]string, error) {
	if opts.fallbackHostsSet {
		for _, host := range opts.FallbackHosts {
			if host == "" {
				return nil, errors.New("fallback hosts must not be empty")
			}
		}
		return append([]string(nil), opts.FallbackHosts...), nil
	}
	if _, isDefaultPort := opts.activePort(); opts.hasCustomRESTHost() || !isDefaultPort {
		return nil, nil
	}
	if !opts.isProductionEnvironment() {
		return getEnvFallbackHosts(opts.Environment), nil
	}
	return defaultFallbackHosts(), nil
}

func (opts *clientOptions) restURL(host string) string {
	port, isDefaultPort := opts.activePort()
	if !isDefaultPort {
		host = net.JoinHostPort(host, strconv.Itoa(port))
	}
	if opts.NoTLS {
		return "http://" + host
	}
	return "https://" + host
}

func (opts *clientOptions) fallbackRetryTimeout() time.Duration {
	if opts.FallbackRetryTimeout > 0 {
		return opts.FallbackRetryTimeout
	}
	return defaultOptions.FallbackRetryTimeout
}

func (opts *clientOptions) httpRequestTimeout() time.Duration {
	if opts.HTTPRequestTimeout > 0 {
		return opts.HTTPRequestTimeout
	}
	return defaultOptions.HTTPRequestTimeout
}

func (opts *clientOptions) protocol() string {
	if opts.UseBinaryProtocol {
		return protocolMsgPack
	}
	return protocolJSON
}

// httpclient gives the configured client, or builds one honouring
// HTTPOpenTimeout for connection establishment.
func (opts *clientOptions) httpclient() *http.Client {
	if opts.HTTPClient != nil {
		return opts.HTTPClient
	}
	openTimeout := opts.HTTPOpenTimeout
	if openTimeout <= 0 {
		openTimeout = defaultOptions.HTTPOpenTimeout
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.DialContext = (&net.Dialer{
		Timeout:   openTimeout,
		KeepAlive: 30 * time.Second,
	}).DialContext
	transport.TLSHandshakeTimeout = openTimeout
	return &http.Client{Transport: transport}
}

func (opts *clientOptions) loggerOptions() LoggerOptions {
	l := opts.LogHandler
	if l == nil {
		l = defaultLogger()
	}
	return LoggerOptions{Logger: l, Level: opts.LogLevel}
}

func WithAuthCallback(authCallback func(context.Context, TokenParams) (Tokener, error)) ClientOption {
	return func(os *clientOptions) {
		os.AuthCallback = authCallback
	}
}

func WithAuthParams(params url.Values) ClientOption {
	return func(os *clientOptions) {
		os.AuthParams = params
	}
}

func WithAuthURL(url string) ClientOption {
	return func(os *clientOptions) {
		os.AuthURL = url
	}
}

func WithAuthMethod(method string) ClientOption {
	return func(os *clientOptions) {
		os.AuthMethod = method
	}
}

func WithAuthHeaders(headers http.Header) ClientOption {
	return func(os *clientOptions) {
		os.AuthHeaders = headers
	}
}

func WithDefaultTokenParams(params TokenParams) ClientOption {
	return func(os *clientOptions) {
		os.DefaultTokenParams = &params
	}
}

func WithKey(key string) ClientOption {
	return func(os *clientOptions) {
		os.Key = key
	}
}

func WithQueryTime(queryTime bool) ClientOption {
	return func(os *clientOptions) {
		os.UseQueryTime = queryTime
	}
}

func WithToken(token string) ClientOption {
	return func(os *clientOptions) {
		os.Token = token
	}
}

func WithTokenDetails(details *TokenDetails) ClientOption {
	return func(os *clientOptions) {
		os.TokenDetails = details
	}
}

func WithUseTokenAuth(use bool) ClientOption {
	return func(os *clientOptions) {
		os.UseTokenAuth = use
	}
}

func WithClientID(clientID string) ClientOption {
	return func(os *clientOptions) {
		os.ClientID = clientID
	}
}

func WithEnvironment(env string) ClientOption {
	return func(os *clientOptions) {
		os.Environment = env
	}
}

func WithPort(port int) ClientOption {
	return func(os *clientOptions) {
		os.Port = port
	}
}

func WithTLSPort(port int) ClientOption {
	return func(os *clientOptions) {
		os.TLSPort = port
	}
}

func WithRESTHost(host string) ClientOption {
	return func(os *clientOptions) {
		os.RESTHost = host
	}
}

func WithTLS(tls bool) ClientOption {
	return func(os *clientOptions) {
		os.NoTLS = !tls
	}
}

func WithFallbackHosts(hosts []string) ClientOption {
	return func(os *clientOptions) {
		os.FallbackHosts = hosts
		os.fallbackHostsSet = true
	}
}

func WithHTTPMaxRetryCount(count int) ClientOption {
	return func(os *clientOptions) {
		os.HTTPMaxRetryCount = count
	}
}

func WithHTTPRequestTimeout(timeout time.Duration) ClientOption {
	return func(os *clientOptions) {
		os.HTTPRequestTimeout = timeout
	}
}

func WithHTTPOpenTimeout(timeout time.Duration) ClientOption {
	return func(os *clientOptions) {
		os.HTTPOpenTimeout = timeout
	}
}

func WithFallbackRetryTimeout(timeout time.Duration) ClientOption {
	return func(os *clientOptions) {
		os.FallbackRetryTimeout = timeout
	}
}

func WithHTTPClient(client *http.Client) ClientOption {
	return func(os *clientOptions) {
		os.HTTPClient = client
	}
}

func WithUseBinaryProtocol(use bool) ClientOption {
	return func(os *clientOptions) {
		os.UseBinaryProtocol = use
	}
}

func WithIdempotentRESTPublishing(idempotent bool) ClientOption {
	return func(os *clientOptions) {
		os.IdempotentRESTPublishing = idempotent
	}
}

func WithAddRequestIDs(add bool) ClientOption {
	return func(os *clientOptions) {
		os.AddRequestIDs = add
	}
}

func WithAgents(agents map[string]string) ClientOption {
	return func(os *clientOptions) {
		os.Agents = agents
	}
}

func WithLogHandler(handler Logger) ClientOption {
	return func(os *clientOptions) {
		os.LogHandler = handler
	}
}

func WithLogLevel(level LogLevel) ClientOption {
	return func(os *clientOptions) {
		os.LogLevel = level
	}
}

func WithVCDiffPlugin(plugin VCDiffDecoder) ClientOption {
	return func(os *clientOptions) {
		os.VCDiffPlugin = plugin
	}
}

func AuthWithCallback(authCallback func(context.Context, TokenParams) (Tokener, error)) AuthOption {
	return func(os *authOptions) {
		os.AuthCallback = authCallback
	}
}

func AuthWithParams(params url.Values) AuthOption {
	return func(os *authOptions) {
		os.AuthParams = params
	}
}

func AuthWithURL(url string) AuthOption {
	return func(os *authOptions) {
		os.AuthURL = url
	}
}

func AuthWithMethod(method string) AuthOption {
	return func(os *authOptions) {
		os.AuthMethod = method
	}
}

func AuthWithHeaders(headers http.Header) AuthOption {
	return func(os *authOptions) {
		os.AuthHeaders = headers
	}
}

func AuthWithKey(key string) AuthOption {
	return func(os *authOptions) {
		os.Key = key
	}
}

func AuthWithQueryTime(queryTime bool) AuthOption {
	return func(os *authOptions) {
		os.UseQueryTime = queryTime
	}
}

func AuthWithToken(token string) AuthOption {
	return func(os *authOptions) {
		os.Token = token
	}
}

func AuthWithTokenDetails(details *TokenDetails) AuthOption {
	return func(os *authOptions) {
		os.TokenDetails = details
	}
}

func AuthWithUseTokenAuth(use bool) AuthOption {
	return func(os *authOptions) {
		os.UseTokenAuth = use
	}
}

func AuthWithClientID(clientID string) AuthOption {
	return func(os *authOptions) {
		os.ClientID = clientID
	}
}
