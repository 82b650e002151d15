package refresh

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/url"
	"slices"
	"strings"
)

// ContentType selects the encoding of the token endpoint request body.
type ContentType string

const (
	// ContentTypeForm encodes the body as application/x-www-form-urlencoded. It is the default.
	ContentTypeForm ContentType = "application/x-www-form-urlencoded"

	// ContentTypeJSON encodes the body as application/json.
	ContentTypeJSON ContentType = "application/json"
)

const (
	// GrantTypeRefreshToken is the grant used when a refresh token is configured.
	GrantTypeRefreshToken = "refresh_token"

	// GrantTypeClientCredentials is the grant used otherwise.
	GrantTypeClientCredentials = "client_credentials"
)

// ParseContentType maps the short and long spellings of a content type to a ContentType.
// An empty value selects ContentTypeForm.
func ParseContentType(value string) (ContentType, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "", "form", "form-urlencoded", string(ContentTypeForm):
		return ContentTypeForm, nil
	case "json", string(ContentTypeJSON):
		return ContentTypeJSON, nil
	default:
		return "", fmt.Errorf("refresh: unsupported content type %q", value)
	}
}

// TokenRequest describes a call to the token endpoint.
// It is a value type; WithScope returns a modified copy.
type TokenRequest struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
	Resource     []string
	Audience     string
	ContentType  ContentType
}

// WithScope returns a copy of r with Scope replaced. An empty scope keeps the configured one.
func (r TokenRequest) WithScope(scope string) TokenRequest {
	if scope != "" {
		r.Scope = scope
	}
	r.Resource = slices.Clone(r.Resource)
	return r
}

// GrantType returns the grant the request will use.
func (r TokenRequest) GrantType() string {
	if r.RefreshToken != "" {
		return GrantTypeRefreshToken
	}
	return GrantTypeClientCredentials
}

// Serialize returns a stable, field-order independent serialization of the request.
// Two requests serialize equally iff every field (resources compared as a set) is equal.
func (r TokenRequest) Serialize() string {
	fields := map[string]any{
		"tokenUrl": r.TokenURL,
		"clientId": r.ClientID,
	}
	setIfNotEmpty(fields, "clientSecret", r.ClientSecret)
	setIfNotEmpty(fields, "refreshToken", r.RefreshToken)
	setIfNotEmpty(fields, "scope", r.Scope)
	setIfNotEmpty(fields, "audience", r.Audience)
	if r.ContentType != "" && r.ContentType != ContentTypeForm {
		fields["contentType"] = string(r.ContentType)
	}
	if len(r.Resource) > 0 {
		resources := slices.Clone(r.Resource)
		slices.Sort(resources)
		fields["resource"] = resources
	}

	// encoding/json writes map keys in sorted order
	data, _ := json.Marshal(fields)
	return string(data)
}

// Fingerprint returns the hex SHA-256 of Serialize. Secrets never appear in it verbatim.
func (r TokenRequest) Fingerprint() string {
	sum := sha256.Sum256([]byte(r.Serialize()))
	return hex.EncodeToString(sum[:])
}

func setIfNotEmpty(fields map[string]any, key, value string) {
	if value != "" {
		fields[key] = value
	}
}

// params returns the token endpoint parameters in wire order.
func (r TokenRequest) params() url.Values {
	values := url.Values{}
	values.Set("grant_type", r.GrantType())
	values.Set("client_id", r.ClientID)

	if r.RefreshToken != "" {
		values.Set("refresh_token", r.RefreshToken)
	} else if r.ClientSecret != "" {
		values.Set("client_secret", r.ClientSecret)
	}

	if r.Scope != "" {
		values.Set("scope", r.Scope)
	}
	for _, resource := range r.Resource {
		values.Add("resource", resource)
	}
	if r.Audience != "" {
		values.Set("audience", r.Audience)
	}

	return values
}

// encode renders the request body and returns it with its content type.
func (r TokenRequest) encode() (string, ContentType, error) {
	values := r.params()

	if r.ContentType != ContentTypeJSON {
		return values.Encode(), ContentTypeForm, nil
	}

	payload := make(map[string]any, len(values))
	for key, vals := range values {
		if key == "resource" && len(vals) > 1 {
			payload[key] = vals
			continue
		}
		payload[key] = vals[0]
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return "", "", fmt.Errorf("refresh: failed to encode request: %w", err)
	}

	return string(data), ContentTypeJSON, nil
}
