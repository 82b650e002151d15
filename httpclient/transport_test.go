package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/AmmannChristian/go-oidcx/internal/testutil"
	"github.com/AmmannChristian/go-oidcx/oauth2client"
	"github.com/AmmannChristian/go-oidcx/refresh"
)

type stubLogger struct {
	mu       sync.Mutex
	messages []string
}

func (l *stubLogger) Printf(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, fmt.Sprintf(format, args...))
}

func (l *stubLogger) getMessages() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.messages))
	copy(out, l.messages)
	return out
}

// downstream is a resource server recording the Authorization header and body of every call.
type downstream struct {
	*httptest.Server

	mu     sync.Mutex
	auth   []string
	bodies []string
	status func(n int) int
}

func newDownstream(tb testing.TB, status func(n int) int) *downstream {
	tb.Helper()

	if status == nil {
		status = func(int) int { return http.StatusOK }
	}

	d := &downstream{status: status}
	d.Server = testutil.NewLocalHTTPServer(tb, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)

		d.mu.Lock()
		d.auth = append(d.auth, r.Header.Get("Authorization"))
		d.bodies = append(d.bodies, string(body))
		n := len(d.auth)
		d.mu.Unlock()

		w.WriteHeader(d.status(n))
		_, _ = w.Write([]byte("ok"))
	}))
	tb.Cleanup(d.Close)
	return d
}

func (d *downstream) calls() ([]string, []string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.auth...), append([]string(nil), d.bodies...)
}

type recordingSink struct {
	mu     sync.Mutex
	events []oauth2client.Event
}

func (s *recordingSink) TokenRefreshed(_ context.Context, event oauth2client.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
}

func (s *recordingSink) snapshot() []oauth2client.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]oauth2client.Event(nil), s.events...)
}

func newTransport(t *testing.T, cfg oauth2client.Config, opts ...oauth2client.Option) (*OAuth2Transport, *oauth2client.TokenManager) {
	t.Helper()

	tm, err := oauth2client.NewTokenManager(cfg, opts...)
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	t.Cleanup(tm.Wait)

	return NewOAuth2Transport(tm, nil), tm
}

func clientCredentials(idp *testutil.MockIdP, origins ...string) oauth2client.Config {
	return oauth2client.Config{
		TokenURL:     idp.TokenURL(),
		ClientID:     "client",
		ClientSecret: "secret",
		Scope:        "openid",
		Origins:      origins,
	}
}

func TestNewOAuth2Transport(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)

	tm, err := oauth2client.NewTokenManager(clientCredentials(idp))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}

	transport := NewOAuth2Transport(tm, nil)

	if transport.TokenManager != tm {
		t.Error("TokenManager not set correctly")
	}
	if transport.Base != http.DefaultTransport {
		t.Error("Base should default to http.DefaultTransport")
	}

	customTransport := &http.Transport{}
	if NewOAuth2Transport(tm, customTransport).Base != customTransport {
		t.Error("Base should be set to custom transport")
	}
}

func TestOAuth2Transport_RoundTrip(t *testing.T) {
	idp := testutil.NewMockIdP(t, testutil.JSONResponse(http.StatusOK,
		`{"access_token":"mock-access-token","token_type":"Bearer","expires_in":3600}`))
	api := newDownstream(t, nil)

	transport, _ := newTransport(t, clientCredentials(idp, api.URL))
	client := &http.Client{Transport: transport}

	resp, err := client.Get(api.URL + "/resource")
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	auth, _ := api.calls()
	if len(auth) != 1 || auth[0] != "Bearer mock-access-token" {
		t.Errorf("unexpected Authorization headers %v", auth)
	}

	requests := idp.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected 1 token request, got %d", len(requests))
	}
	if got := requests[0].Params.Get("grant_type"); got != "client_credentials" {
		t.Errorf("unexpected grant_type %q", got)
	}
}

func TestOAuth2Transport_RefreshTokenBootstrap(t *testing.T) {
	idp := testutil.NewMockIdP(t, testutil.JSONResponse(http.StatusOK, `{"access_token":"X"}`))
	api := newDownstream(t, nil)

	transport, _ := newTransport(t, oauth2client.Config{
		RefreshToken: testutil.CreateRefreshToken(t, idp.URL, "clientA"),
		Origins:      []string{api.URL},
	})
	client := &http.Client{Transport: transport}

	resp, err := client.Get(api.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}

	requests := idp.Requests()
	if len(requests) != 1 {
		t.Fatalf("expected exactly 1 token request, got %d", len(requests))
	}
	if requests[0].Method != http.MethodPost || requests[0].Path != "/token" {
		t.Errorf("unexpected token call %s %s", requests[0].Method, requests[0].Path)
	}
	if got := requests[0].Params.Get("grant_type"); got != "refresh_token" {
		t.Errorf("unexpected grant_type %q", got)
	}
	if got := requests[0].Params.Get("client_id"); got != "clientA" {
		t.Errorf("unexpected client_id %q", got)
	}

	auth, _ := api.calls()
	if len(auth) != 1 || auth[0] != "Bearer X" {
		t.Errorf("unexpected Authorization headers %v", auth)
	}
}

func TestOAuth2Transport_NearExpirationRefreshesInBackground(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	api := newDownstream(t, nil)
	sink := &recordingSink{}

	old := testutil.CreateToken(t, jwt.MapClaims{"sub": "old"}, 29*time.Second)
	cfg := clientCredentials(idp, api.URL)
	cfg.AccessToken = old

	transport, tm := newTransport(t, cfg, oauth2client.WithEventSink(sink))
	client := &http.Client{Transport: transport}

	for i := 0; i < 2; i++ {
		resp, err := client.Get(api.URL)
		if err != nil {
			t.Fatalf("request %d failed: %v", i, err)
		}
		resp.Body.Close()
		tm.Wait()
	}

	auth, _ := api.calls()
	if auth[0] != "Bearer "+old {
		t.Errorf("first request should carry the old token, got %q", auth[0])
	}
	if auth[1] == auth[0] || auth[1] != "Bearer "+tm.CurrentToken() {
		t.Errorf("second request should carry the refreshed token, got %q", auth[1])
	}

	events := sink.snapshot()
	if len(events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(events))
	}
	if events[0].Reason != oauth2client.ReasonNearExpiration {
		t.Errorf("unexpected reason %q", events[0].Reason)
	}
	if idp.Count() != 1 {
		t.Errorf("expected 1 token request, got %d", idp.Count())
	}
}

func TestOAuth2Transport_RefreshErrorSkipsDownstream(t *testing.T) {
	tests := []struct {
		name    string
		handler testutil.IdPHandler
		check   func(t *testing.T, err error)
	}{
		{
			name:    "error message",
			handler: testutil.JSONResponse(http.StatusBadRequest, `{"message":"kaboom"}`),
			check: func(t *testing.T, err error) {
				if !strings.Contains(err.Error(), "kaboom") {
					t.Errorf("expected error to contain kaboom, got %v", err)
				}
				if !errors.Is(err, refresh.ErrRefresh) {
					t.Errorf("expected ErrRefresh, got %v", err)
				}
			},
		},
		{
			name:    "token type mismatch",
			handler: testutil.JSONResponse(http.StatusOK, `{"access_token":"x","token_type":"mac"}`),
			check: func(t *testing.T, err error) {
				if !errors.Is(err, refresh.ErrTokenTypeMismatch) {
					t.Errorf("expected ErrTokenTypeMismatch, got %v", err)
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := testutil.NewMockIdP(t, tt.handler)
			api := newDownstream(t, nil)
			logger := &stubLogger{}

			transport, _ := newTransport(t, clientCredentials(idp, api.URL))
			transport.Logger = logger
			client := &http.Client{Transport: transport}

			resp, err := client.Get(api.URL)
			if err == nil {
				resp.Body.Close()
				t.Fatal("expected error")
			}
			tt.check(t, err)

			if auth, _ := api.calls(); len(auth) != 0 {
				t.Errorf("downstream should not be contacted, got %d calls", len(auth))
			}
			if messages := logger.getMessages(); len(messages) != 1 || !strings.Contains(messages[0], "failed to get token") {
				t.Errorf("expected the token failure to be logged, got %v", messages)
			}
		})
	}
}

func TestOAuth2Transport_RetriesOnce(t *testing.T) {
	tests := []struct {
		name       string
		status     func(n int) int
		wantStatus int
		wantCalls  int
		wantTokens int
	}{
		{
			name: "401 then success",
			status: func(n int) int {
				if n == 1 {
					return http.StatusUnauthorized
				}
				return http.StatusOK
			},
			wantStatus: http.StatusOK,
			wantCalls:  2,
			wantTokens: 2,
		},
		{
			name:       "401 twice",
			status:     func(int) int { return http.StatusUnauthorized },
			wantStatus: http.StatusUnauthorized,
			wantCalls:  2,
			wantTokens: 2,
		},
		{
			name:       "403 is not retried",
			status:     func(int) int { return http.StatusForbidden },
			wantStatus: http.StatusForbidden,
			wantCalls:  1,
			wantTokens: 1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := testutil.NewMockIdP(t, nil)
			api := newDownstream(t, tt.status)
			logger := &stubLogger{}

			transport, _ := newTransport(t, clientCredentials(idp, api.URL))
			transport.Logger = logger
			client := &http.Client{Transport: transport}

			// no GetBody, so the transport has to buffer the body itself
			req, err := http.NewRequest(http.MethodPost, api.URL, io.NopCloser(strings.NewReader("payload")))
			if err != nil {
				t.Fatalf("failed to create request: %v", err)
			}

			resp, err := client.Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}

			auth, bodies := api.calls()
			if len(auth) != tt.wantCalls {
				t.Fatalf("expected %d downstream calls, got %d", tt.wantCalls, len(auth))
			}
			for i, body := range bodies {
				if body != "payload" {
					t.Errorf("call %d: unexpected body %q", i, body)
				}
			}
			if tt.wantCalls == 2 && auth[0] == auth[1] {
				t.Error("replay should carry a refreshed token")
			}
			if idp.Count() != tt.wantTokens {
				t.Errorf("expected %d token requests, got %d", tt.wantTokens, idp.Count())
			}
			// one line for the rejection, one for the replay
			if got := len(logger.getMessages()); got != 2*(tt.wantCalls-1) {
				t.Errorf("expected %d log lines, got %v", 2*(tt.wantCalls-1), logger.getMessages())
			}
		})
	}
}

func TestOAuth2Transport_RequestIDSharedByReplay(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	logger := &stubLogger{}

	var (
		mu  sync.Mutex
		ids []string
	)
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		mu.Lock()
		defer mu.Unlock()
		ids = append(ids, RequestID(req.Context()))
		if len(ids) == 1 {
			return testutil.NewResponse(req, http.StatusUnauthorized, "denied"), nil
		}
		return testutil.NewResponse(req, http.StatusOK, "ok"), nil
	})

	tm, err := oauth2client.NewTokenManager(clientCredentials(idp, "https://api.example.com"))
	if err != nil {
		t.Fatalf("NewTokenManager failed: %v", err)
	}
	transport := NewOAuth2Transport(tm, base)
	transport.Logger = logger

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/x", nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	resp.Body.Close()

	if len(ids) != 2 {
		t.Fatalf("expected 2 dispatches, got %d", len(ids))
	}
	if ids[0] == "" || ids[0] != ids[1] {
		t.Errorf("both legs should carry the same request ID, got %q and %q", ids[0], ids[1])
	}

	messages := logger.getMessages()
	if len(messages) != 2 {
		t.Fatalf("expected 2 log lines, got %v", messages)
	}
	for _, msg := range messages {
		if !strings.Contains(msg, "["+ids[0]+"]") {
			t.Errorf("log line %q does not carry request ID %s", msg, ids[0])
		}
	}

	if RequestID(req.Context()) != "" {
		t.Error("the caller's context should not be modified")
	}
}

func TestOAuth2Transport_StackedTransportsReplayOnce(t *testing.T) {
	tests := []struct {
		name       string
		status     func(n int) int
		wantStatus int
		wantCalls  int
		wantTokens int
	}{
		{
			name: "inner replay succeeds",
			status: func(n int) int {
				if n == 1 {
					return http.StatusUnauthorized
				}
				return http.StatusOK
			},
			wantStatus: http.StatusOK,
			wantCalls:  2,
			wantTokens: 2,
		},
		{
			// the inner transport passes the outer replay through without refreshing again
			name:       "always rejected",
			status:     func(int) int { return http.StatusUnauthorized },
			wantStatus: http.StatusUnauthorized,
			wantCalls:  3,
			wantTokens: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := testutil.NewMockIdP(t, nil)
			api := newDownstream(t, tt.status)

			inner, tm := newTransport(t, clientCredentials(idp, api.URL))
			outer := NewOAuth2Transport(tm, inner)

			req, err := http.NewRequest(http.MethodPost, api.URL, io.NopCloser(strings.NewReader("payload")))
			if err != nil {
				t.Fatalf("failed to create request: %v", err)
			}
			resp, err := (&http.Client{Transport: outer}).Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, resp.StatusCode)
			}
			auth, bodies := api.calls()
			if len(auth) != tt.wantCalls {
				t.Errorf("expected %d downstream calls, got %d", tt.wantCalls, len(auth))
			}
			for i, body := range bodies {
				if body != "payload" {
					t.Errorf("call %d: unexpected body %q", i, body)
				}
			}
			if idp.Count() != tt.wantTokens {
				t.Errorf("expected %d token requests, got %d", tt.wantTokens, idp.Count())
			}
		})
	}
}

func TestOAuth2Transport_ReplayBodyLimit(t *testing.T) {
	const payload = "0123456789abcdef"

	tests := []struct {
		name      string
		limit     int64
		wantCalls int
	}{
		{name: "within limit", limit: 64, wantCalls: 2},
		{name: "exactly at limit", limit: int64(len(payload)), wantCalls: 2},
		{name: "over limit is not replayed", limit: 8, wantCalls: 1},
		{name: "buffering disabled", limit: -1, wantCalls: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idp := testutil.NewMockIdP(t, nil)
			api := newDownstream(t, func(int) int { return http.StatusUnauthorized })

			transport, _ := newTransport(t, clientCredentials(idp, api.URL))
			transport.MaxReplayBodySize = tt.limit

			req, err := http.NewRequest(http.MethodPost, api.URL, io.NopCloser(strings.NewReader(payload)))
			if err != nil {
				t.Fatalf("failed to create request: %v", err)
			}
			resp, err := (&http.Client{Transport: transport}).Do(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", resp.StatusCode)
			}
			auth, bodies := api.calls()
			if len(auth) != tt.wantCalls {
				t.Fatalf("expected %d downstream calls, got %d", tt.wantCalls, len(auth))
			}
			for i, body := range bodies {
				if body != payload {
					t.Errorf("call %d: expected the full body, got %q", i, body)
				}
			}
		})
	}
}

func TestOAuth2Transport_RetryOnCustomStatus(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	api := newDownstream(t, func(n int) int {
		if n == 1 {
			return http.StatusForbidden
		}
		return http.StatusOK
	})

	cfg := clientCredentials(idp, api.URL)
	cfg.RetryOnStatusCodes = []int{http.StatusForbidden}
	transport, _ := newTransport(t, cfg)

	resp, err := (&http.Client{Transport: transport}).Get(api.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected status 200, got %d", resp.StatusCode)
	}
}

func TestOAuth2Transport_Eligibility(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	api := newDownstream(t, nil)
	other := newDownstream(t, nil)

	transport, _ := newTransport(t, clientCredentials(idp, api.URL))
	client := &http.Client{Transport: transport}

	resp, err := client.Get(other.URL)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if auth, _ := other.calls(); len(auth) != 1 || auth[0] != "" {
		t.Errorf("ineligible request should pass unchanged, got %v", auth)
	}
	if idp.Count() != 0 {
		t.Errorf("ineligible request should not fetch a token, got %d calls", idp.Count())
	}

	req, _ := http.NewRequest(http.MethodGet, api.URL, nil)
	req.Header.Set("Authorization", "Basic abc")
	resp, err = client.Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if auth, _ := api.calls(); len(auth) != 1 || auth[0] != "Basic abc" {
		t.Errorf("existing Authorization header should be kept, got %v", auth)
	}
}

func TestOAuth2Transport_TokenEndpointExcluded(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)

	cfg := clientCredentials(idp)
	cfg.ShouldAuthenticate = func(*http.Request) bool { return true }
	transport, _ := newTransport(t, cfg)

	resp, err := (&http.Client{Transport: transport}).Post(idp.TokenURL(),
		"application/x-www-form-urlencoded", strings.NewReader("grant_type=client_credentials"))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	if idp.Count() != 1 {
		t.Errorf("token endpoint request should pass through alone, got %d calls", idp.Count())
	}
}

func TestOAuth2Transport_ConcurrentRequestsShareRefresh(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	issue := testutil.IssueTokens(t, time.Hour)
	idp.SetHandler(func(w http.ResponseWriter, r *http.Request, n int) {
		time.Sleep(50 * time.Millisecond)
		issue(w, r, n)
	})
	api := newDownstream(t, nil)

	transport, _ := newTransport(t, clientCredentials(idp, api.URL))
	client := &http.Client{Transport: transport}

	const n = 10
	var (
		wg     sync.WaitGroup
		failed atomic.Int32
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := client.Get(api.URL)
			if err != nil {
				failed.Add(1)
				return
			}
			resp.Body.Close()
		}()
	}
	wg.Wait()

	if failed.Load() != 0 {
		t.Fatalf("%d requests failed", failed.Load())
	}
	if idp.Count() != 1 {
		t.Errorf("expected a single token request, got %d", idp.Count())
	}

	auth, _ := api.calls()
	for _, header := range auth {
		if header != auth[0] {
			t.Errorf("requests carry different tokens: %q vs %q", header, auth[0])
		}
	}
}

func TestOAuth2Transport_WithScope(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	api := newDownstream(t, nil)

	transport, _ := newTransport(t, clientCredentials(idp, api.URL))

	req, _ := http.NewRequestWithContext(WithScope(context.Background(), "admin"), http.MethodGet, api.URL, nil)
	resp, err := (&http.Client{Transport: transport}).Do(req)
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	resp.Body.Close()

	requests := idp.Requests()
	if len(requests) != 1 || requests[0].Params.Get("scope") != "admin" {
		t.Errorf("expected a token request for scope admin, got %+v", requests)
	}
}

func TestOAuth2Transport_DoesNotModifyOriginalRequest(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	api := newDownstream(t, nil)

	transport, _ := newTransport(t, clientCredentials(idp, api.URL))

	req, _ := http.NewRequest(http.MethodGet, api.URL, nil)
	resp, err := transport.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip failed: %v", err)
	}
	resp.Body.Close()

	if req.Header.Get("Authorization") != "" {
		t.Error("original request should not be modified")
	}
}

func TestOAuth2Transport_NilTokenManager(t *testing.T) {
	transport := &OAuth2Transport{}

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com", nil)
	_, err := transport.RoundTrip(req)
	if err == nil || !strings.Contains(err.Error(), "TokenManager is nil") {
		t.Errorf("expected nil TokenManager error, got %v", err)
	}
}

func TestOAuth2Transport_BaseErrorReturnedUnchanged(t *testing.T) {
	idp := testutil.NewMockIdP(t, nil)
	baseErr := errors.New("connection reset")

	transport, _ := newTransport(t, clientCredentials(idp, "https://api.example.com"))
	transport.Base = testutil.RoundTripFunc(func(*http.Request) (*http.Response, error) {
		return nil, baseErr
	})

	req := httptest.NewRequest(http.MethodGet, "https://api.example.com/x", nil)
	_, err := transport.RoundTrip(req)
	if !errors.Is(err, baseErr) {
		t.Errorf("expected base error, got %v", err)
	}
}

func BenchmarkOAuth2Transport_RoundTrip(b *testing.B) {
	idp := testutil.NewMockIdP(b, nil)
	base := testutil.RoundTripFunc(func(req *http.Request) (*http.Response, error) {
		return testutil.NewResponse(req, http.StatusOK, "ok"), nil
	})

	tm, err := oauth2client.NewTokenManager(clientCredentials(idp, "https://api.example.com"))
	if err != nil {
		b.Fatalf("NewTokenManager failed: %v", err)
	}
	transport := NewOAuth2Transport(tm, base)

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		req := httptest.NewRequest(http.MethodGet, "https://api.example.com/x", nil)
		resp, err := transport.RoundTrip(req)
		if err != nil {
			b.Fatal(err)
		}
		resp.Body.Close()
	}
}
