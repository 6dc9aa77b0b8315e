package ably_test

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/ably/ably-rest-go/ably"
	"github.com/ably/ably-rest-go/ably/ablytest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func bearer(token string) string {
	return "Bearer " + base64.StdEncoding.EncodeToString([]byte(token))
}

func TestAuth_BasicWithKey(t *testing.T) {
	mock := ablytest.NewMockTransport()
	client := newClient(t, mock, ably.WithKey(testKey))

	assert.True(t, client.Auth.IsUsingBasicAuth())
	header, err := client.Auth.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Basic "+base64.StdEncoding.EncodeToString([]byte(testKey)), header)
	assert.Zero(t, mock.Len(), "basic auth must not reach the network")
}

func TestAuth_ClientIDForcesTokenAuth(t *testing.T) {
	clk := newClock()
	mock := ablytest.NewMockTransport()
	mock.Enqueue(tokenResponse("token-1", clk.Now().Add(time.Hour)))
	client := newClient(t, mock,
		ably.WithKey(testKey),
		ably.WithClientID("alice"),
		ably.WithNow(clk.Now),
	)

	assert.False(t, client.Auth.IsUsingBasicAuth())
	assert.Equal(t, "alice", client.Auth.ClientID())

	for i := 0; i < 3; i++ {
		header, err := client.Auth.AuthorizationHeader(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bearer("token-1"), header)
	}
	require.Equal(t, 1, mock.Len(), "the token must be requested once and then cached")

	req := mock.Request(0)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/keys/app.key/requestToken", req.URL.Path)
	assert.Empty(t, req.Header.Get("Authorization"), "token requests are signed, not authenticated")

	var tokReq map[string]interface{}
	require.NoError(t, json.Unmarshal(readBody(t, req), &tokReq))
	assert.Equal(t, "app.key", tokReq["keyName"])
	assert.Equal(t, "alice", tokReq["clientId"])
	assert.NotEmpty(t, tokReq["mac"])
	assert.NotEmpty(t, tokReq["nonce"])
	assert.EqualValues(t, clk.Now().UnixMilli(), tokReq["timestamp"])
}

func TestAuth_TokenCacheExpiryMargin(t *testing.T) {
	clk := newClock()
	mock := ablytest.NewMockTransport()
	mock.Enqueue(
		tokenResponse("token-1", clk.Now().Add(ably.TokenExpiryMargin+time.Second)),
		tokenResponse("token-2", clk.Now().Add(time.Hour)),
	)
	client := newClient(t, mock,
		ably.WithKey(testKey),
		ably.WithUseTokenAuth(true),
		ably.WithNow(clk.Now),
	)
	ctx := context.Background()

	header, err := client.Auth.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, bearer("token-1"), header)

	header, err = client.Auth.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, bearer("token-1"), header, "a token outside the margin is reused")
	assert.Equal(t, 1, mock.Len())

	clk.Advance(time.Second)
	header, err = client.Auth.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, bearer("token-2"), header, "a token within the margin is renewed")
	assert.Equal(t, 2, mock.Len())
}

func TestTokenDetails_Expired(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		expires int64
		expired bool
	}{
		{"unknown expiry", 0, false},
		{"far in the future", now.Add(time.Hour).UnixMilli(), false},
		{"just outside the margin", now.Add(ably.TokenExpiryMargin + time.Millisecond).UnixMilli(), false},
		{"exactly at the margin", now.Add(ably.TokenExpiryMargin).UnixMilli(), true},
		{"in the past", now.Add(-time.Minute).UnixMilli(), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tok := &ably.TokenDetails{Token: "t", Expires: tt.expires}
			assert.Equal(t, tt.expired, tok.Expired(now))
		})
	}
}

func TestTokenRequest_MAC(t *testing.T) {
	secret := []byte("secret")
	base := ably.TokenRequest{
		TokenParams: ably.TokenParams{
			TTL:        3600000,
			Capability: `{"*":["*"]}`,
			ClientID:   "alice",
			Timestamp:  1700000000000,
		},
		KeyName: "app.key",
		Nonce:   "0123456789abcdef",
	}

	h := hmac.New(sha256.New, secret)
	h.Write([]byte("app.key\n3600000\n{\"*\":[\"*\"]}\nalice\n1700000000000\n0123456789abcdef\n"))
	expected := base64.StdEncoding.EncodeToString(h.Sum(nil))

	req := base
	assert.Equal(t, expected, req.ComputeMAC(secret))
	assert.Equal(t, req.ComputeMAC(secret), req.ComputeMAC(secret), "signing is deterministic")

	t.Run("absent fields are signed as empty lines", func(t *testing.T) {
		req := ably.TokenRequest{KeyName: "app.key", Nonce: "n"}
		h := hmac.New(sha256.New, secret)
		h.Write([]byte("app.key\n\n\n\n\nn\n"))
		assert.Equal(t, base64.StdEncoding.EncodeToString(h.Sum(nil)), req.ComputeMAC(secret))
	})

	t.Run("every field is signed", func(t *testing.T) {
		mutations := map[string]func(*ably.TokenRequest){
			"keyName":    func(r *ably.TokenRequest) { r.KeyName = "app.other" },
			"ttl":        func(r *ably.TokenRequest) { r.TTL++ },
			"capability": func(r *ably.TokenRequest) { r.Capability = `{"a":["*"]}` },
			"clientId":   func(r *ably.TokenRequest) { r.ClientID = "bob" },
			"timestamp":  func(r *ably.TokenRequest) { r.Timestamp++ },
			"nonce":      func(r *ably.TokenRequest) { r.Nonce = "fedcba9876543210" },
		}
		for field, mutate := range mutations {
			req := base
			mutate(&req)
			assert.NotEqual(t, expected, req.ComputeMAC(secret), field)
		}
	})

	t.Run("an existing mac is kept", func(t *testing.T) {
		req := base
		req.MAC = "precomputed"
		req.Sign(secret)
		assert.Equal(t, "precomputed", req.MAC)
	})
}

func TestAuth_CreateTokenRequest(t *testing.T) {
	clk := newClock()
	client := newClient(t, ablytest.NewMockTransport(), ably.WithKey(testKey), ably.WithNow(clk.Now))

	req, err := client.Auth.CreateTokenRequest(context.Background(), &ably.TokenParams{TTL: 60000, ClientID: "carol"})
	require.NoError(t, err)
	assert.Equal(t, "app.key", req.KeyName)
	assert.Equal(t, int64(60000), req.TTL)
	assert.Equal(t, "carol", req.ClientID)
	assert.Equal(t, clk.Now().UnixMilli(), req.Timestamp)
	assert.GreaterOrEqual(t, len(req.Nonce), 16)
	assert.Equal(t, req.ComputeMAC([]byte("secret")), req.MAC)

	other, err := client.Auth.CreateTokenRequest(context.Background(), nil)
	require.NoError(t, err)
	assert.NotEqual(t, req.Nonce, other.Nonce)

	t.Run("canonical capability", func(t *testing.T) {
		req, err := client.Auth.CreateTokenRequest(context.Background(), &ably.TokenParams{
			Capability: `{"b":["subscribe","publish"],"a":["*"]}`,
		})
		require.NoError(t, err)
		assert.Equal(t, `{"a":["*"],"b":["publish","subscribe"]}`, req.Capability)
		assert.Equal(t, req.ComputeMAC([]byte("secret")), req.MAC)

		raw, err := client.Auth.CreateTokenRequest(context.Background(), &ably.TokenParams{Capability: "not json"})
		require.NoError(t, err)
		assert.Equal(t, "not json", raw.Capability)
	})

	t.Run("query time", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(ablytest.JSON([]int64{1600000000000}))
		client := newClient(t, mock, ably.WithKey(testKey), ably.WithQueryTime(true))
		req, err := client.Auth.CreateTokenRequest(context.Background(), nil)
		require.NoError(t, err)
		assert.Equal(t, int64(1600000000000), req.Timestamp)
		require.Equal(t, 1, mock.Len())
		assert.Equal(t, "/time", mock.Request(0).URL.Path)
	})

	t.Run("requires a key", func(t *testing.T) {
		client := newClient(t, ablytest.NewMockTransport(), ably.WithToken("tok"))
		_, err := client.Auth.CreateTokenRequest(context.Background(), nil)
		assert.Equal(t, ably.ErrInvalidCredentials, ably.UnwrapErrorCode(err))
	})
}

func TestNewREST_CredentialErrors(t *testing.T) {
	tests := []struct {
		name    string
		options []ably.ClientOption
		code    ably.ErrorCode
	}{
		{"no credentials", nil, ably.ErrNoAuthenticationMeans},
		{"malformed key", []ably.ClientOption{ably.WithKey("app.key")}, ably.ErrInvalidCredential},
		{"key with too many parts", []ably.ClientOption{ably.WithKey("app.key:secret:extra")}, ably.ErrInvalidCredential},
		{"wildcard client id", []ably.ClientOption{ably.WithKey(testKey), ably.WithClientID("*")}, ably.ErrIncompatibleCredentials},
		{"basic auth without TLS", []ably.ClientOption{ably.WithKey(testKey), ably.WithTLS(false)}, ably.ErrInvalidUseOfBasicAuthOverNonTLSTransport},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ably.NewREST(tt.options...)
			var info *ably.ErrorInfo
			require.ErrorAs(t, err, &info)
			assert.Equal(t, tt.code, info.Code)
		})
	}

	t.Run("token auth without TLS is allowed", func(t *testing.T) {
		_, err := ably.NewREST(ably.WithKey(testKey), ably.WithUseTokenAuth(true), ably.WithTLS(false))
		assert.NoError(t, err)
	})
}

func TestAuth_ExpiredTokenWithoutRenewal(t *testing.T) {
	clk := newClock()
	mock := ablytest.NewMockTransport()
	client := newClient(t, mock,
		ably.WithTokenDetails(&ably.TokenDetails{Token: "old", Expires: clk.Now().Add(-time.Minute).UnixMilli()}),
		ably.WithNow(clk.Now),
	)
	_, err := client.Channels.Get("test").Status(context.Background())
	assert.Equal(t, ably.ErrNoWayToRenewAuthToken, ably.UnwrapErrorCode(err))
	assert.Zero(t, mock.Len())
}

func TestAuth_Callback(t *testing.T) {
	var (
		mu     sync.Mutex
		params []ably.TokenParams
	)
	callback := func(ctx context.Context, p ably.TokenParams) (ably.Tokener, error) {
		mu.Lock()
		defer mu.Unlock()
		params = append(params, p)
		return ably.TokenString("from-callback"), nil
	}
	mock := ablytest.NewMockTransport()
	client := newClient(t, mock,
		ably.WithAuthCallback(callback),
		ably.WithClientID("dave"),
		ably.WithDefaultTokenParams(ably.TokenParams{TTL: 1000, ClientID: "ignored"}),
	)
	header, err := client.Auth.AuthorizationHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, bearer("from-callback"), header)
	assert.Zero(t, mock.Len())
	require.Len(t, params, 1)
	assert.Equal(t, "dave", params[0].ClientID, "the client's id takes precedence over the default params")
	assert.Equal(t, int64(1000), params[0].TTL)

	t.Run("callback errors", func(t *testing.T) {
		client := newClient(t, ablytest.NewMockTransport(), ably.WithAuthCallback(func(context.Context, ably.TokenParams) (ably.Tokener, error) {
			return nil, errors.New("denied")
		}))
		_, err := client.Auth.AuthorizationHeader(context.Background())
		assert.Equal(t, ably.ErrErrorFromClientTokenCallback, ably.UnwrapErrorCode(err))
	})

	t.Run("unsigned token request is signed with the key", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(tokenResponse("exchanged", time.Now().Add(time.Hour)))
		client := newClient(t, mock,
			ably.WithKey(testKey),
			ably.WithUseTokenAuth(true),
			ably.WithAuthCallback(func(context.Context, ably.TokenParams) (ably.Tokener, error) {
				return &ably.TokenRequest{Nonce: "0123456789abcdef"}, nil
			}),
		)
		header, err := client.Auth.AuthorizationHeader(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bearer("exchanged"), header)
		var body ably.TokenRequest
		require.NoError(t, json.Unmarshal(readBody(t, mock.Request(0)), &body))
		assert.Equal(t, "app.key", body.KeyName)
		assert.Equal(t, body.ComputeMAC([]byte("secret")), body.MAC)
	})

	t.Run("mismatched key name", func(t *testing.T) {
		client := newClient(t, ablytest.NewMockTransport(),
			ably.WithKey(testKey),
			ably.WithUseTokenAuth(true),
			ably.WithAuthCallback(func(context.Context, ably.TokenParams) (ably.Tokener, error) {
				return ably.TokenRequest{KeyName: "app.other"}, nil
			}),
		)
		_, err := client.Auth.AuthorizationHeader(context.Background())
		assert.Equal(t, ably.ErrIncompatibleCredentials, ably.UnwrapErrorCode(err))
	})

	t.Run("mismatched client id", func(t *testing.T) {
		client := newClient(t, ablytest.NewMockTransport(),
			ably.WithClientID("alice"),
			ably.WithAuthCallback(func(context.Context, ably.TokenParams) (ably.Tokener, error) {
				return &ably.TokenDetails{Token: "t", ClientID: "bob"}, nil
			}),
		)
		_, err := client.Auth.AuthorizationHeader(context.Background())
		assert.Equal(t, ably.ErrInvalidClientID, ably.UnwrapErrorCode(err))
	})

	t.Run("wildcard token keeps the client anonymous", func(t *testing.T) {
		client := newClient(t, ablytest.NewMockTransport(),
			ably.WithAuthCallback(func(context.Context, ably.TokenParams) (ably.Tokener, error) {
				return &ably.TokenDetails{Token: "t", ClientID: "*"}, nil
			}),
		)
		_, err := client.Auth.AuthorizationHeader(context.Background())
		require.NoError(t, err)
		assert.Empty(t, client.Auth.ClientID())
	})
}

func TestAuth_AuthURL(t *testing.T) {
	t.Run("GET with text token", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.EnqueueFor("auth.example.com", ablytest.Response{Body: "jwt-token\n", ContentType: "text/plain"})
		client := newClient(t, mock,
			ably.WithAuthURL("https://auth.example.com/token?app=1"),
			ably.WithAuthParams(url.Values{"session": {"s1"}}),
			ably.WithAuthHeaders(http.Header{"X-Session": {"s1"}}),
			ably.WithDefaultTokenParams(ably.TokenParams{TTL: 5000}),
		)
		header, err := client.Auth.AuthorizationHeader(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bearer("jwt-token"), header)

		req := mock.Request(0)
		assert.Equal(t, http.MethodGet, req.Method)
		assert.Equal(t, "1", req.URL.Query().Get("app"))
		assert.Equal(t, "s1", req.URL.Query().Get("session"))
		assert.Equal(t, "5000", req.URL.Query().Get("ttl"))
		assert.Equal(t, "s1", req.Header.Get("X-Session"))
	})

	t.Run("POST with token details", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.EnqueueFor("auth.example.com", ablytest.JSON(map[string]interface{}{
			"token":  "details-token",
			"issued": 1,
		}))
		client := newClient(t, mock,
			ably.WithAuthURL("https://auth.example.com/token"),
			ably.WithAuthMethod(http.MethodPost),
			ably.WithAuthParams(url.Values{"session": {"s1"}}),
		)
		header, err := client.Auth.AuthorizationHeader(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bearer("details-token"), header)

		req := mock.Request(0)
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", req.Header.Get("Content-Type"))
		form, err := url.ParseQuery(string(readBody(t, req)))
		require.NoError(t, err)
		assert.Equal(t, "s1", form.Get("session"))
	})

	t.Run("signed token request is exchanged", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.EnqueueFor("auth.example.com", ablytest.JSON(map[string]interface{}{
			"keyName":   "app.key",
			"nonce":     "0123456789abcdef",
			"timestamp": 1700000000000,
			"mac":       "signed-elsewhere",
		}))
		mock.EnqueueFor("rest.ably.io", tokenResponse("exchanged", time.Now().Add(time.Hour)))
		client := newClient(t, mock, ably.WithAuthURL("https://auth.example.com/token"))

		header, err := client.Auth.AuthorizationHeader(context.Background())
		require.NoError(t, err)
		assert.Equal(t, bearer("exchanged"), header)
		require.Equal(t, 2, mock.Len())
		var body map[string]interface{}
		require.NoError(t, json.Unmarshal(readBody(t, mock.Request(1)), &body))
		assert.Equal(t, "signed-elsewhere", body["mac"])
	})

	t.Run("unknown response shape", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.EnqueueFor("auth.example.com", ablytest.JSON(map[string]interface{}{"foo": "bar"}))
		client := newClient(t, mock, ably.WithAuthURL("https://auth.example.com/token"))
		_, err := client.Auth.AuthorizationHeader(context.Background())
		var info *ably.ErrorInfo
		require.ErrorAs(t, err, &info)
		assert.Equal(t, ably.ErrErrorFromClientTokenCallback, info.Code)
		assert.Equal(t, "auth.example.com", info.Server)
	})
}

func TestAuth_RequestTokenWithoutToken(t *testing.T) {
	mock := ablytest.NewMockTransport()
	mock.Enqueue(ablytest.JSON(map[string]interface{}{"keyName": "app.key"}))
	client := newClient(t, mock, ably.WithKey(testKey))
	_, err := client.Auth.RequestToken(context.Background(), nil)
	assert.Equal(t, ably.ErrUnauthorized, ably.UnwrapErrorCode(err))
}

func TestAuth_Authorize(t *testing.T) {
	clk := newClock()
	mock := ablytest.NewMockTransport()
	mock.Enqueue(
		tokenResponse("token-1", clk.Now().Add(time.Minute)),
		tokenResponse("token-2", clk.Now().Add(time.Hour)),
	)
	client := newClient(t, mock, ably.WithKey(testKey), ably.WithNow(clk.Now))
	require.True(t, client.Auth.IsUsingBasicAuth())

	ctx := context.Background()
	tok, err := client.Auth.Authorize(ctx, &ably.TokenParams{TTL: 120000, Capability: `{"chat":["publish"]}`})
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.Token)
	assert.False(t, client.Auth.IsUsingBasicAuth(), "authorize switches to token auth for good")
	assert.Same(t, tok, client.Auth.CachedToken())

	// The implicit renewal reuses the params given to Authorize.
	clk.Advance(time.Minute)
	header, err := client.Auth.AuthorizationHeader(ctx)
	require.NoError(t, err)
	assert.Equal(t, bearer("token-2"), header)
	assert.False(t, client.Auth.IsUsingBasicAuth())

	require.Equal(t, 2, mock.Len())
	var renewal map[string]interface{}
	require.NoError(t, json.Unmarshal(readBody(t, mock.Request(1)), &renewal))
	assert.EqualValues(t, 120000, renewal["ttl"])
	assert.Equal(t, `{"chat":["publish"]}`, renewal["capability"])
	assert.EqualValues(t, clk.Now().UnixMilli(), renewal["timestamp"], "the timestamp is never reused")
}

func TestAuth_RequestTokenDoesNotChangeClientToken(t *testing.T) {
	mock := ablytest.NewMockTransport()
	mock.Enqueue(tokenResponse("side-token", time.Now().Add(time.Hour)))
	client := newClient(t, mock, ably.WithKey(testKey))
	tok, err := client.Auth.RequestToken(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, "side-token", tok.Token)
	assert.True(t, client.Auth.IsUsingBasicAuth())
	assert.Nil(t, client.Auth.CachedToken())
}

func TestAuth_ConcurrentRenewalsShareOneRequest(t *testing.T) {
	mock := ablytest.NewMockTransport()
	mock.Handle(func(*http.Request) ablytest.Response {
		time.Sleep(100 * time.Millisecond)
		return tokenResponse("shared", time.Now().Add(time.Hour))
	})
	client := newClient(t, mock, ably.WithKey(testKey), ably.WithUseTokenAuth(true))

	var wg sync.WaitGroup
	headers := make([]string, 10)
	errs := make([]error, 10)
	for i := range headers {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			headers[i], errs[i] = client.Auth.AuthorizationHeader(context.Background())
		}(i)
	}
	wg.Wait()
	for i := range headers {
		require.NoError(t, errs[i])
		assert.Equal(t, bearer("shared"), headers[i])
	}
	assert.Equal(t, 1, mock.Len())
}

func TestAuth_CancelledCallerDoesNotFailSharedRenewal(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	mock := ablytest.NewMockTransport()
	mock.Handle(func(*http.Request) ablytest.Response {
		once.Do(func() { close(started) })
		<-release
		return tokenResponse("shared", time.Now().Add(time.Hour))
	})
	client := newClient(t, mock, ably.WithKey(testKey), ably.WithUseTokenAuth(true))

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := client.Auth.AuthorizationHeader(ctx)
		firstErr <- err
	}()
	<-started

	second := make(chan string, 1)
	go func() {
		header, err := client.Auth.AuthorizationHeader(context.Background())
		assert.NoError(t, err)
		second <- header
	}()

	cancel()
	err := <-firstErr
	assert.ErrorIs(t, err, context.Canceled, "the cancelled caller stops waiting")

	close(release)
	assert.Equal(t, bearer("shared"), <-second)
	assert.Equal(t, 1, mock.Len())
}

func TestREST_TokenErrorRetry(t *testing.T) {
	statusBody := ablytest.JSON(map[string]interface{}{"channelId": "test"})
	expired := ablytest.ErrorResponse(401, 40142, "token expired")

	t.Run("reauthorizes and retries once", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(
			tokenResponse("token-1", time.Now().Add(time.Hour)),
			expired,
			tokenResponse("token-2", time.Now().Add(time.Hour)),
			statusBody,
		)
		client := newClient(t, mock, ably.WithKey(testKey), ably.WithClientID("alice"), ably.WithAddRequestIDs(true))
		details, err := client.Channels.Get("test").Status(context.Background())
		require.NoError(t, err)
		assert.Equal(t, "test", details.ChannelID)

		reqs := mock.Requests()
		require.Len(t, reqs, 4)
		assert.Equal(t, bearer("token-1"), reqs[1].Header.Get("Authorization"))
		assert.Equal(t, bearer("token-2"), reqs[3].Header.Get("Authorization"))
		id := reqs[1].URL.Query().Get("request_id")
		assert.NotEmpty(t, id)
		assert.Equal(t, id, reqs[3].URL.Query().Get("request_id"), "a retried request keeps its id")
	})

	t.Run("a second token error propagates", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(
			tokenResponse("token-1", time.Now().Add(time.Hour)),
			expired,
			tokenResponse("token-2", time.Now().Add(time.Hour)),
			expired,
		)
		client := newClient(t, mock, ably.WithKey(testKey), ably.WithClientID("alice"))
		_, err := client.Channels.Get("test").Status(context.Background())
		assert.Equal(t, ably.ErrTokenExpired, ably.UnwrapErrorCode(err))
		assert.Equal(t, 4, mock.Len())
	})

	t.Run("basic auth does not reauthorize", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(expired)
		client := newClient(t, mock, ably.WithKey(testKey))
		_, err := client.Channels.Get("test").Status(context.Background())
		assert.Equal(t, ably.ErrTokenExpired, ably.UnwrapErrorCode(err))
		assert.Equal(t, 1, mock.Len())
	})

	t.Run("other auth errors are not retried", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(
			tokenResponse("token-1", time.Now().Add(time.Hour)),
			ablytest.ErrorResponse(401, 40160, "operation not permitted"),
		)
		client := newClient(t, mock, ably.WithKey(testKey), ably.WithClientID("alice"))
		_, err := client.Channels.Get("test").Status(context.Background())
		assert.Equal(t, ably.ErrorCode(40160), ably.UnwrapErrorCode(err))
		assert.Equal(t, 2, mock.Len())
	})
}

func TestCapability_Encode(t *testing.T) {
	c, err := ably.ParseCapability(`{"b":["subscribe","publish"],"a":["*"]}`)
	require.NoError(t, err)
	assert.Equal(t, `{"a":["*"],"b":["publish","subscribe"]}`, c.Encode())
	assert.Empty(t, ably.Capability{}.Encode())
}

func TestAuth_PerCallOptions(t *testing.T) {
	ctx := context.Background()

	t.Run("token options short-circuit", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		client := newClient(t, mock, ably.WithKey(testKey))
		tok, err := client.Auth.RequestToken(ctx, nil, ably.AuthWithToken("given"))
		require.NoError(t, err)
		assert.Equal(t, "given", tok.Token)

		details := &ably.TokenDetails{Token: "details"}
		tok, err = client.Auth.RequestToken(ctx, nil, ably.AuthWithTokenDetails(details))
		require.NoError(t, err)
		assert.Same(t, details, tok)
		assert.Zero(t, mock.Len())
	})

	t.Run("key for a single token request", func(t *testing.T) {
		client := newClient(t, ablytest.NewMockTransport(), ably.WithToken("tok"))
		req, err := client.Auth.CreateTokenRequest(ctx, nil,
			ably.AuthWithKey("app.other:othersecret"),
			ably.AuthWithClientID("zed"),
		)
		require.NoError(t, err)
		assert.Equal(t, "app.other", req.KeyName)
		assert.Equal(t, "zed", req.ClientID)
		assert.Equal(t, req.ComputeMAC([]byte("othersecret")), req.MAC)
	})

	t.Run("query time for a single token request", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.Enqueue(ablytest.JSON([]int64{1600000000000}))
		client := newClient(t, mock, ably.WithKey(testKey))
		req, err := client.Auth.CreateTokenRequest(ctx, nil, ably.AuthWithQueryTime(true))
		require.NoError(t, err)
		assert.Equal(t, int64(1600000000000), req.Timestamp)
	})

	t.Run("auth URL for a single request", func(t *testing.T) {
		mock := ablytest.NewMockTransport()
		mock.EnqueueFor("auth.example.com", ablytest.Response{Body: "url-token", ContentType: "text/plain"})
		client := newClient(t, mock, ably.WithKey(testKey))
		tok, err := client.Auth.RequestToken(ctx, nil,
			ably.AuthWithURL("https://auth.example.com/token"),
			ably.AuthWithMethod(http.MethodPost),
			ably.AuthWithHeaders(http.Header{"X-Trace": {"t1"}}),
			ably.AuthWithParams(url.Values{"scope": {"read"}}),
		)
		require.NoError(t, err)
		assert.Equal(t, "url-token", tok.Token)
		req := mock.Request(0)
		assert.Equal(t, http.MethodPost, req.Method)
		assert.Equal(t, "t1", req.Header.Get("X-Trace"))
		assert.Equal(t, "scope=read", string(readBody(t, req)))
	})

	t.Run("authorize persists the options", func(t *testing.T) {
		var calls []string
		callback := func(name string) func(context.Context, ably.TokenParams) (ably.Tokener, error) {
			return func(context.Context, ably.TokenParams) (ably.Tokener, error) {
				calls = append(calls, name)
				return &ably.TokenDetails{Token: name, Expires: time.Now().Add(time.Hour).UnixMilli()}, nil
			}
		}
		client := newClient(t, ablytest.NewMockTransport(), ably.WithAuthCallback(callback("initial")))
		_, err := client.Auth.Authorize(ctx, nil, ably.AuthWithCallback(callback("override")), ably.AuthWithUseTokenAuth(true))
		require.NoError(t, err)

		_, err = client.Auth.Authorize(ctx, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"override", "override"}, calls)
	})
}

func TestTokenDetails_Times(t *testing.T) {
	tok := ably.TokenDetails{Issued: 1700000000000, Expires: 1700003600000}
	assert.Equal(t, time.Hour, tok.ExpireTime().Sub(tok.IssueTime()))
	assert.Equal(t, int64(1700000000000), tok.IssueTime().UnixMilli())
}
