package instrumentation

import (
	"errors"
	"fmt"
	"testing"

	"github.com/AmmannChristian/go-oidcx/refresh"
	"github.com/AmmannChristian/go-oidcx/tokenstore"
)

func TestErrorType(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"token type", &refresh.TokenTypeError{TokenType: "mac"}, ErrorTypeTokenType},
		{"idp status", &refresh.RefreshError{StatusCode: 400, Message: "kaboom"}, ErrorTypeIdP},
		{"no access token", refresh.ErrNoAccessToken, ErrorTypeIdP},
		{"backend", &tokenstore.BackendError{Op: "get", Key: "k", Err: errors.New("down")}, ErrorTypeCache},
		{"wrapped backend", fmt.Errorf("oauth2client: %w", &tokenstore.BackendError{Op: "set", Err: errors.New("down")}), ErrorTypeCache},
		{"transport", errors.New("dial tcp: connection refused"), ErrorTypeTransport},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ErrorType(tt.err); got != tt.want {
				t.Errorf("ErrorType() = %q, want %q", got, tt.want)
			}
		})
	}
}
