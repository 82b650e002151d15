package testutil

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"encoding/pem"
	"io"
	"math/big"
	"net"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// NewLocalHTTPServer starts an HTTP server bound to IPv4 loopback only.
// The sandbox blocks IPv6 listeners, so force tcp4 to keep tests runnable.
func NewLocalHTTPServer(tb testing.TB, handler http.Handler) *httptest.Server {
	tb.Helper()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		tb.Fatalf("failed to create IPv4 listener: %v", err)
	}

	server := httptest.NewUnstartedServer(handler)
	server.Listener = listener
	server.Start()

	return server
}

// RoundTripFunc allows inlining http.RoundTripper implementations.
type RoundTripFunc func(*http.Request) (*http.Response, error)

// RoundTrip calls the underlying function.
func (f RoundTripFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}

// StaticJSONResponse returns a RoundTripper that always responds with the provided JSON body.
func StaticJSONResponse(body string) RoundTripFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: http.StatusOK,
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader(body)),
			Request:    req,
		}, nil
	}
}

// NewResponse builds a minimal response for RoundTripFunc stubs.
func NewResponse(req *http.Request, status int, body string) *http.Response {
	return &http.Response{
		StatusCode: status,
		Header:     make(http.Header),
		Body:       io.NopCloser(strings.NewReader(body)),
		Request:    req,
	}
}

// TestSigningKey is the HMAC key used by CreateToken.
var TestSigningKey = []byte("secret")

// CreateToken signs claims with TestSigningKey. A positive ttl sets exp to now+ttl
// unless claims already carry exp.
func CreateToken(tb testing.TB, claims jwt.MapClaims, ttl time.Duration) string {
	tb.Helper()

	if claims == nil {
		claims = jwt.MapClaims{}
	}
	if _, ok := claims["exp"]; !ok && ttl != 0 {
		claims["exp"] = time.Now().Add(ttl).Unix()
	}
	if _, ok := claims["iat"]; !ok {
		claims["iat"] = time.Now().Unix()
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(TestSigningKey)
	if err != nil {
		tb.Fatalf("failed to sign token: %v", err)
	}

	return token
}

// CreateRefreshToken creates a long-lived refresh token carrying iss and sub.
func CreateRefreshToken(tb testing.TB, issuer, subject string) string {
	tb.Helper()

	return CreateToken(tb, jwt.MapClaims{"iss": issuer, "sub": subject}, 24*time.Hour)
}

// RecordedRequest is a token endpoint call captured by MockIdP.
type RecordedRequest struct {
	Method      string
	Path        string
	ContentType string
	Accept      string
	Body        string

	// Params holds the body parameters, decoded from either form or JSON encoding.
	Params url.Values
}

// IdPHandler answers a token endpoint call. n is the 1-based index of the call.
type IdPHandler func(w http.ResponseWriter, r *http.Request, n int)

// MockIdP is a token endpoint served over IPv4 loopback that records every call.
type MockIdP struct {
	*httptest.Server

	mu       sync.Mutex
	requests []RecordedRequest
	handler  IdPHandler
}

// NewMockIdP starts a mock identity provider serving /token.
// If handler is nil, every call is answered with a fresh one-hour JWT access token.
func NewMockIdP(tb testing.TB, handler IdPHandler) *MockIdP {
	tb.Helper()

	if handler == nil {
		handler = IssueTokens(tb, time.Hour)
	}

	idp := &MockIdP{handler: handler}
	idp.Server = NewLocalHTTPServer(tb, http.HandlerFunc(idp.serveHTTP))
	tb.Cleanup(idp.Close)

	return idp
}

// TokenURL returns the token endpoint URL.
func (m *MockIdP) TokenURL() string {
	return m.URL + "/token"
}

// SetHandler replaces the handler for subsequent calls.
func (m *MockIdP) SetHandler(handler IdPHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handler = handler
}

// Requests returns a copy of the recorded calls.
func (m *MockIdP) Requests() []RecordedRequest {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]RecordedRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Count returns the number of recorded calls.
func (m *MockIdP) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockIdP) serveHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)

	recorded := RecordedRequest{
		Method:      r.Method,
		Path:        r.URL.Path,
		ContentType: r.Header.Get("Content-Type"),
		Accept:      r.Header.Get("Accept"),
		Body:        string(body),
		Params:      decodeParams(r.Header.Get("Content-Type"), body),
	}

	m.mu.Lock()
	m.requests = append(m.requests, recorded)
	n := len(m.requests)
	handler := m.handler
	m.mu.Unlock()

	handler(w, r, n)
}

func decodeParams(contentType string, body []byte) url.Values {
	if !strings.HasPrefix(contentType, "application/json") {
		values, _ := url.ParseQuery(string(body))
		return values
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return url.Values{}
	}

	values := url.Values{}
	for key, value := range payload {
		switch v := value.(type) {
		case string:
			values.Add(key, v)
		case []any:
			for _, item := range v {
				if s, ok := item.(string); ok {
					values.Add(key, s)
				}
			}
		}
	}
	return values
}

// JSONResponse answers every call with status and body.
func JSONResponse(status int, body string) IdPHandler {
	return func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, body)
	}
}

// IssueTokens answers every call with a new JWT access token valid for ttl.
// The token carries a "n" claim with the call index so tests can tell tokens apart.
func IssueTokens(tb testing.TB, ttl time.Duration) IdPHandler {
	return func(w http.ResponseWriter, _ *http.Request, n int) {
		token := CreateToken(tb, jwt.MapClaims{"n": n}, ttl)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": token,
			"token_type":   "Bearer",
			"expires_in":   int(ttl.Seconds()),
		})
	}
}

// Sequence answers the n-th call with handlers[n-1], repeating the last handler afterwards.
func Sequence(handlers ...IdPHandler) IdPHandler {
	return func(w http.ResponseWriter, r *http.Request, n int) {
		idx := n - 1
		if idx >= len(handlers) {
			idx = len(handlers) - 1
		}
		handlers[idx](w, r, n)
	}
}

// WriteTestCACert writes a self-signed CA certificate to the provided path for TLS tests.
func WriteTestCACert(tb testing.TB, path string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate CA key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		Subject:               pkix.Name{CommonName: "test-ca"},
		KeyUsage:              x509.KeyUsageCertSign | x509.KeyUsageCRLSign,
		BasicConstraintsValid: true,
		IsCA:                  true,
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create CA certificate: %v", err)
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(path, pemBytes, 0o600); err != nil {
		tb.Fatalf("failed to write CA certificate: %v", err)
	}
}

// WriteTestCertAndKey writes a self-signed certificate and key to the provided paths.
func WriteTestCertAndKey(tb testing.TB, certPath, keyPath string) {
	tb.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		tb.Fatalf("failed to generate key: %v", err)
	}

	template := &x509.Certificate{
		SerialNumber: big.NewInt(2),
		NotBefore:    time.Now().Add(-time.Hour),
		NotAfter:     time.Now().Add(time.Hour),
		Subject:      pkix.Name{CommonName: "test-cert"},
		KeyUsage:     x509.KeyUsageDigitalSignature | x509.KeyUsageKeyEncipherment,
		ExtKeyUsage:  []x509.ExtKeyUsage{x509.ExtKeyUsageClientAuth, x509.ExtKeyUsageServerAuth},
	}

	der, err := x509.CreateCertificate(rand.Reader, template, template, &privateKey.PublicKey, privateKey)
	if err != nil {
		tb.Fatalf("failed to create certificate: %v", err)
	}

	certPEM := pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der})
	if err := os.WriteFile(certPath, certPEM, 0o600); err != nil {
		tb.Fatalf("failed to write certificate: %v", err)
	}

	keyPEM := pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: x509.MarshalPKCS1PrivateKey(privateKey)})
	if err := os.WriteFile(keyPath, keyPEM, 0o600); err != nil {
		tb.Fatalf("failed to write key: %v", err)
	}
}

