// Package endpoint maps a configured base URL to the wire protocol the vendor
// behind it speaks: which body shape to send, which path to post to and how
// to authenticate. Resolution is pure string inspection and never touches the
// network.
package endpoint

import (
	"net/http"
	"net/url"
	"strings"
)

// Family is the vendor protocol family detected from the base URL host.
type Family string

const (
	FamilyDefault Family = "default" // chat-completions style vendors
	FamilyNative  Family = "native"  // block-structured messages API
	FamilyHybrid  Family = "hybrid"  // vendor exposing both shapes behind one host
)

// Format is the request/response body shape to use.
type Format string

const (
	FormatOpenAI    Format = "openai"
	FormatAnthropic Format = "anthropic"
)

// AuthStyle selects how the API key is attached to requests.
type AuthStyle string

const (
	AuthBearer AuthStyle = "bearer"  // Authorization: Bearer <key>
	AuthAPIKey AuthStyle = "api-key" // x-api-key: <key> plus anthropic-version
)

const (
	// ChatCompletionsPath is appended to default-family base URLs.
	ChatCompletionsPath = "/chat/completions"
	// MessagesPath is appended to native-shaped base URLs.
	MessagesPath = "/v1/messages"
	// AnthropicVersion is sent with every api-key authenticated request.
	AnthropicVersion = "2023-06-01"
)

var (
	hybridDomains = []string{"minimax.io", "minimaxi.com", "minimax.chat"}
	nativeDomains = []string{"anthropic.com"}
)

// Endpoint is the resolved protocol description for one base URL.
type Endpoint struct {
	BaseURL string
	Family  Family
	Format  Format
	Path    string
	Auth    AuthStyle
}

// Resolve inspects baseURL and returns the matching endpoint. Hybrid vendor
// domains are checked before the native domain; anything unrecognized is
// treated as the default family.
func Resolve(baseURL string) Endpoint {
	base := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	host, path := splitURL(base)

	switch {
	case matchesDomain(host, hybridDomains):
		if isAnthropicPath(path) {
			return Endpoint{BaseURL: base, Family: FamilyHybrid, Format: FormatAnthropic, Path: MessagesPath, Auth: AuthAPIKey}
		}
		return Endpoint{BaseURL: base, Family: FamilyHybrid, Format: FormatOpenAI, Path: ChatCompletionsPath, Auth: AuthAPIKey}
	case matchesDomain(host, nativeDomains):
		return Endpoint{BaseURL: base, Family: FamilyNative, Format: FormatAnthropic, Path: MessagesPath, Auth: AuthAPIKey}
	default:
		return Endpoint{BaseURL: base, Family: FamilyDefault, Format: FormatOpenAI, Path: ChatCompletionsPath, Auth: AuthBearer}
	}
}

// URL returns the completion URL. A base already ending in /v1 is not given
// a second /v1 segment.
func (e Endpoint) URL() string {
	return join(e.BaseURL, e.Path)
}

// ModelsURL returns the URL of the vendor's model listing.
func (e Endpoint) ModelsURL() string {
	if e.Format == FormatAnthropic {
		return join(e.BaseURL, "/v1/models")
	}
	return join(e.BaseURL, "/models")
}

// Headers returns the authentication headers for apiKey. An empty key yields
// no auth headers but still carries the protocol version for api-key style.
func (e Endpoint) Headers(apiKey string) http.Header {
	header := http.Header{}
	switch e.Auth {
	case AuthAPIKey:
		if apiKey != "" {
			header.Set("x-api-key", apiKey)
		}
		header.Set("anthropic-version", AnthropicVersion)
	default:
		if apiKey != "" {
			header.Set("Authorization", "Bearer "+apiKey)
		}
	}
	return header
}

func join(base, path string) string {
	if strings.HasSuffix(base, "/v1") && strings.HasPrefix(path, "/v1/") {
		path = strings.TrimPrefix(path, "/v1")
	}
	return base + path
}

func splitURL(raw string) (host, path string) {
	parsed, err := url.Parse(raw)
	if err != nil || parsed.Host == "" {
		// Scheme-less input such as "api.minimax.io/v1".
		parsed, err = url.Parse("https://" + raw)
		if err != nil {
			return "", ""
		}
	}
	return strings.ToLower(parsed.Hostname()), strings.TrimRight(parsed.Path, "/")
}

func matchesDomain(host string, domains []string) bool {
	for _, domain := range domains {
		if host == domain || strings.HasSuffix(host, "."+domain) {
			return true
		}
	}
	return false
}

func isAnthropicPath(path string) bool {
	lower := strings.ToLower(path)
	return strings.HasSuffix(lower, "/anthropic") || strings.Contains(lower, "/anthropic/")
}
