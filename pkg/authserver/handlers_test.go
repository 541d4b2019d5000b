package authserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redditmcp/redditmcp/pkg/authserver/crypto"
	"github.com/redditmcp/redditmcp/pkg/authserver/storage"
	"github.com/redditmcp/redditmcp/pkg/authserver/tokens"
	"github.com/redditmcp/redditmcp/pkg/authserver/upstream"
	"github.com/redditmcp/redditmcp/pkg/config"
	"github.com/redditmcp/redditmcp/pkg/oauth"
)

const (
	testIssuer      = "http://localhost:3000"
	testRedirectURI = "http://127.0.0.1:8976/callback"
)

// fakeReddit stands in for Reddit's authorize, token, and identity
// endpoints.
type fakeReddit struct {
	srv *httptest.Server

	tokenCalls    atomic.Int32
	refreshCalls  atomic.Int32
	identityCalls atomic.Int32

	failTokens   atomic.Bool
	failIdentity atomic.Bool
}

func newFakeReddit(t *testing.T) *fakeReddit {
	t.Helper()
	f := &fakeReddit{}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/access_token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.failTokens.Load() {
			http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
			return
		}
		require.NoError(t, r.ParseForm())
		access := "upstream-access"
		if r.PostForm.Get("grant_type") == "refresh_token" {
			f.refreshCalls.Add(1)
			access = "upstream-access-refreshed"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token":  access,
			"refresh_token": "upstream-refresh",
			"expires_in":    86400,
			"scope":         "identity read",
		})
	})
	mux.HandleFunc("/api/v1/me", func(w http.ResponseWriter, _ *http.Request) {
		f.identityCalls.Add(1)
		if f.failIdentity.Load() {
			http.Error(w, "revoked", http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"name": "spez"})
	})

	f.srv = httptest.NewServer(mux)
	t.Cleanup(f.srv.Close)
	return f
}

type testEnv struct {
	handler *Handler
	router  http.Handler
	store   *storage.Store
	reddit  *fakeReddit
	codec   *tokens.Codec
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	reddit := newFakeReddit(t)
	up, err := upstream.NewClient("client-id", "client-secret",
		testIssuer+"/oauth/reddit/callback", "redditmcp-gateway-test/1.0",
		upstream.WithEndpoints(
			reddit.srv.URL+"/api/v1/authorize",
			reddit.srv.URL+"/api/v1/access_token",
			reddit.srv.URL+"/api/v1/me",
		))
	require.NoError(t, err)

	store := storage.NewStore(storage.WithSweepInterval(time.Hour))
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{
		Port:               3000,
		IssuerURL:          testIssuer,
		RedditClientID:     "client-id",
		RedditClientSecret: "client-secret",
		RedditRedirectURI:  testIssuer + "/oauth/reddit/callback",
		JWTSecret:          []byte(strings.Repeat("k", 32)),
		UserAgent:          "redditmcp-gateway-test/1.0",
		RateLimitRequests:  100,
		RateLimitWindow:    time.Minute,
	}

	codec := tokens.NewCodec(cfg.JWTSecret, cfg.IssuerURL, cfg.IssuerURL)
	h := NewHandler(cfg, store, up, codec)

	return &testEnv{
		handler: h,
		router:  h.Routes(),
		store:   store,
		reddit:  reddit,
		codec:   codec,
	}
}

func (e *testEnv) do(req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

// startAuthorize runs the authorize leg and returns the upstream state that
// would come back on the callback.
func (e *testEnv) startAuthorize(t *testing.T, challenge string) string {
	t.Helper()

	q := url.Values{
		"client_id":             {oauth.PublicClientID},
		"redirect_uri":          {testRedirectURI},
		"response_type":         {"code"},
		"state":                 {"caller-state"},
		"code_challenge":        {challenge},
		"code_challenge_method": {"S256"},
	}
	rec := e.do(httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	state := loc.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

// completeCallback runs the callback leg and returns the authorization code
// handed back to the caller.
func (e *testEnv) completeCallback(t *testing.T, upstreamState string) string {
	t.Helper()

	q := url.Values{"state": {upstreamState}, "code": {"upstream-code"}}
	rec := e.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	require.Empty(t, loc.Query().Get("error"))
	code := loc.Query().Get("code")
	require.NotEmpty(t, code)
	assert.Equal(t, "caller-state", loc.Query().Get("state"))
	return code
}

func (e *testEnv) exchangeCode(t *testing.T, code, verifier string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
		"redirect_uri":  {testRedirectURI},
		"client_id":     {oauth.PublicClientID},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func TestAuthorizationServerMetadata(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-authorization-server", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc oauth.AuthorizationServerMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, testIssuer, doc.Issuer)
	assert.Equal(t, testIssuer+"/oauth/authorize", doc.AuthorizationEndpoint)
	assert.Equal(t, testIssuer+"/oauth/token", doc.TokenEndpoint)
	assert.Equal(t, testIssuer+"/oauth/register", doc.RegistrationEndpoint)
	assert.Equal(t, []string{"code"}, doc.ResponseTypesSupported)
	assert.Equal(t, []string{"S256"}, doc.CodeChallengeMethodsSupported)
	assert.Contains(t, doc.GrantTypesSupported, "refresh_token")
}

func TestProtectedResourceMetadata(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.do(httptest.NewRequest(http.MethodGet, "/.well-known/oauth-protected-resource", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var doc oauth.ProtectedResourceMetadata
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &doc))
	assert.Equal(t, testIssuer+"/mcp", doc.Resource)
	assert.Equal(t, []string{testIssuer}, doc.AuthorizationServers)
}

func TestRegisterReturnsFixedPublicClient(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	body := `{"redirect_uris":["http://127.0.0.1:8976/callback"],"client_name":"test"}`
	req := httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body))
	rec := env.do(req)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp oauth.ClientRegistrationResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, oauth.PublicClientID, resp.ClientID)
	assert.Equal(t, "none", resp.TokenEndpointAuthMethod)
}

func TestRegisterRejectsDisallowedRedirectURI(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	body := `{"redirect_uris":["http://attacker.example.com/callback"]}`
	rec := env.do(httptest.NewRequest(http.MethodPost, "/oauth/register", strings.NewReader(body)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorInvalidRequest)
}

func TestAllowedRedirectURI(t *testing.T) {
	t.Parallel()

	tests := []struct {
		uri  string
		want bool
	}{
		{"https://app.example.com/callback", true},
		{"http://localhost:8976/callback", true},
		{"http://127.0.0.1/callback", true},
		{"http://attacker.example.com/callback", false},
		{"myapp://oauth/callback", true},
		{"/relative/path", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, AllowedRedirectURI(tt.uri), tt.uri)
	}
}

func TestAuthorizeValidation(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	base := url.Values{
		"client_id":             {oauth.PublicClientID},
		"redirect_uri":          {testRedirectURI},
		"response_type":         {"code"},
		"code_challenge":        {"challenge"},
		"code_challenge_method": {"S256"},
		"state":                 {"caller-state"},
	}

	tests := []struct {
		name     string
		mutate   func(url.Values)
		wantCode string
	}{
		{"missing redirect_uri", func(q url.Values) { q.Del("redirect_uri") }, oauth.ErrorInvalidRequest},
		{"disallowed redirect_uri", func(q url.Values) { q.Set("redirect_uri", "http://evil.example.com/cb") }, oauth.ErrorInvalidRequest},
		{"missing client_id", func(q url.Values) { q.Del("client_id") }, oauth.ErrorInvalidRequest},
		{"wrong response_type", func(q url.Values) { q.Set("response_type", "token") }, oauth.ErrorUnsupportedResponseType},
		{"missing code_challenge", func(q url.Values) { q.Del("code_challenge") }, oauth.ErrorInvalidRequest},
		{"plain pkce method", func(q url.Values) { q.Set("code_challenge_method", "plain") }, oauth.ErrorInvalidRequest},
		{"missing state", func(q url.Values) { q.Del("state") }, oauth.ErrorInvalidRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := url.Values{}
			for k, v := range base {
				q[k] = v
			}
			tt.mutate(q)

			rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/authorize?"+q.Encode(), nil))
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.wantCode)
		})
	}
}

func TestAuthorizeRedirectsUpstreamWithCompositeState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(crypto.GeneratePKCEVerifier()))

	key, nonce, ok := strings.Cut(state, ":")
	require.True(t, ok)
	assert.NotEmpty(t, key)
	assert.NotEmpty(t, nonce)
	assert.Equal(t, 1, env.store.Stats().PendingAuthorizations)
}

func TestFullAuthorizationCodeFlow(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	verifier := crypto.GeneratePKCEVerifier()
	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(verifier))
	code := env.completeCallback(t, state)

	rec := env.exchangeCode(t, code, verifier)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(86400), resp.ExpiresIn)
	assert.NotEmpty(t, resp.RefreshToken)

	claims, err := env.codec.Verify(resp.AccessToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "spez", claims.Subject)
	assert.Equal(t, "upstream-access", claims.UpstreamAccessToken)
	assert.Equal(t, "upstream-refresh", claims.UpstreamRefreshToken)
}

func TestAuthorizationCodeReplayFails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	verifier := crypto.GeneratePKCEVerifier()
	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(verifier))
	code := env.completeCallback(t, state)

	require.Equal(t, http.StatusOK, env.exchangeCode(t, code, verifier).Code)

	rec := env.exchangeCode(t, code, verifier)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorInvalidGrant)
}

func TestTokenExchangeRejectsWrongVerifier(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	verifier := crypto.GeneratePKCEVerifier()
	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(verifier))
	code := env.completeCallback(t, state)

	rec := env.exchangeCode(t, code, crypto.GeneratePKCEVerifier())
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorInvalidGrant)

	// The code was consumed by the failed attempt; the right verifier no
	// longer helps.
	rec = env.exchangeCode(t, code, verifier)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenExchangeRejectsWrongRedirectURI(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	verifier := crypto.GeneratePKCEVerifier()
	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(verifier))
	code := env.completeCallback(t, state)

	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"code_verifier": {verifier},
		"redirect_uri":  {"http://127.0.0.1:9999/other"},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorInvalidGrant)
}

func TestTokenRejectsUnknownGrantType(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	form := url.Values{"grant_type": {"password"}}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := env.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorUnsupportedGrantType)
}

func TestCallbackReplayFails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(crypto.GeneratePKCEVerifier()))
	env.completeCallback(t, state)

	q := url.Values{"state": {state}, "code": {"upstream-code"}}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorInvalidRequest)
}

func TestCallbackNonceMismatchFails(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(crypto.GeneratePKCEVerifier()))
	key, _, ok := strings.Cut(state, ":")
	require.True(t, ok)

	q := url.Values{"state": {key + ":wrong-nonce"}, "code": {"upstream-code"}}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// The pending row was consumed by the failed attempt.
	q.Set("state", state)
	rec = env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCallbackMalformedState(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	for _, state := range []string{"", "no-separator", ":missing-key", "missing-nonce:"} {
		q := url.Values{"state": {state}, "code": {"upstream-code"}}
		rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code, "state=%q", state)
	}
}

func TestCallbackUpstreamDenialRedirectsWithAccessDenied(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(crypto.GeneratePKCEVerifier()))

	q := url.Values{"state": {state}, "error": {"access_denied"}}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8976", loc.Host)
	assert.Equal(t, oauth.ErrorAccessDenied, loc.Query().Get("error"))
	assert.Equal(t, "caller-state", loc.Query().Get("state"))
	assert.Zero(t, env.reddit.tokenCalls.Load())
}

func TestCallbackUpstreamExchangeFailureRedirectsWithUpstreamError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.reddit.failTokens.Store(true)

	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(crypto.GeneratePKCEVerifier()))

	q := url.Values{"state": {state}, "code": {"upstream-code"}}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, oauth.ErrorUpstreamError, loc.Query().Get("error"))
}

func TestCallbackIdentityFailureRedirectsWithUpstreamError(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)
	env.reddit.failIdentity.Store(true)

	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(crypto.GeneratePKCEVerifier()))

	q := url.Values{"state": {state}, "code": {"upstream-code"}}
	rec := env.do(httptest.NewRequest(http.MethodGet, "/oauth/reddit/callback?"+q.Encode(), nil))
	require.Equal(t, http.StatusFound, rec.Code)

	loc, err := url.Parse(rec.Header().Get("Location"))
	require.NoError(t, err)
	assert.Equal(t, oauth.ErrorUpstreamError, loc.Query().Get("error"))
}

func (e *testEnv) issueTokens(t *testing.T) oauth.TokenResponse {
	t.Helper()

	verifier := crypto.GeneratePKCEVerifier()
	state := e.startAuthorize(t, crypto.ComputePKCEChallenge(verifier))
	code := e.completeCallback(t, state)

	rec := e.exchangeCode(t, code, verifier)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func (e *testEnv) refreshGrant(t *testing.T, refreshToken string) *httptest.ResponseRecorder {
	t.Helper()

	form := url.Values{
		"grant_type":    {"refresh_token"},
		"refresh_token": {refreshToken},
	}
	req := httptest.NewRequest(http.MethodPost, "/oauth/token", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return e.do(req)
}

func TestRefreshGrantMintsNewBearer(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	issued := env.issueTokens(t)

	rec := env.refreshGrant(t, issued.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	// No rotation: same refresh token id comes back.
	assert.Equal(t, issued.RefreshToken, resp.RefreshToken)
	// Upstream token is fresh; no refresh call was made.
	assert.Zero(t, env.reddit.refreshCalls.Load())

	claims, err := env.codec.Verify(resp.AccessToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "upstream-access", claims.UpstreamAccessToken)
}

func TestRefreshGrantRefreshesNearExpiryUpstream(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	issued := env.issueTokens(t)

	// Age the stored upstream credentials to the refresh threshold.
	require.NoError(t, env.store.UpdateRefreshToken(issued.RefreshToken, &storage.RefreshTokenRecord{
		UserID:               "spez",
		UpstreamAccessToken:  "upstream-access",
		UpstreamRefreshToken: "upstream-refresh",
		UpstreamExpiresAt:    time.Now().Add(time.Minute),
	}))

	rec := env.refreshGrant(t, issued.RefreshToken)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, int32(1), env.reddit.refreshCalls.Load())

	var resp oauth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	claims, err := env.codec.Verify(resp.AccessToken, time.Now())
	require.NoError(t, err)
	assert.Equal(t, "upstream-access-refreshed", claims.UpstreamAccessToken)

	// The stored record was updated in place.
	record, err := env.store.GetRefreshToken(issued.RefreshToken)
	require.NoError(t, err)
	assert.Equal(t, "upstream-access-refreshed", record.UpstreamAccessToken)
}

func TestRefreshGrantUpstreamFailure(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	issued := env.issueTokens(t)

	require.NoError(t, env.store.UpdateRefreshToken(issued.RefreshToken, &storage.RefreshTokenRecord{
		UserID:               "spez",
		UpstreamAccessToken:  "upstream-access",
		UpstreamRefreshToken: "upstream-refresh",
		UpstreamExpiresAt:    time.Now().Add(time.Minute),
	}))
	env.reddit.failTokens.Store(true)

	rec := env.refreshGrant(t, issued.RefreshToken)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorUpstreamError)
}

func TestRefreshGrantUnknownToken(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	rec := env.refreshGrant(t, "does-not-exist")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), oauth.ErrorInvalidGrant)
}

func TestErrorBodiesNeverLeakSecrets(t *testing.T) {
	t.Parallel()
	env := newTestEnv(t)

	verifier := crypto.GeneratePKCEVerifier()
	state := env.startAuthorize(t, crypto.ComputePKCEChallenge(verifier))
	code := env.completeCallback(t, state)

	rec := env.exchangeCode(t, code, crypto.GeneratePKCEVerifier())
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.NotContains(t, rec.Body.String(), "upstream-access")
	assert.NotContains(t, rec.Body.String(), "upstream-refresh")
}
