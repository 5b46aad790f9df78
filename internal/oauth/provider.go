// Package oauth implements the provider side of the sign-in handshake:
// authorization URLs with PKCE, the code exchange, and user info retrieval.
package oauth

import (
	"context"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// UserInfo is the provider identity the coordinator maps to a local user.
type UserInfo struct {
	ProviderAccountID string
	Email             string
	EmailVerified     bool
	Name              string
	AvatarURL         string
}

// Provider abstracts one upstream identity provider.
type Provider interface {
	Name() string
	// AuthCodeURL builds the authorization redirect carrying the CSRF state
	// and the S256 challenge for the given PKCE verifier.
	AuthCodeURL(state, verifier string) string
	// Exchange redeems the authorization code with the stored verifier.
	Exchange(ctx context.Context, code, verifier string) (*oauth2.Token, error)
	// FetchUserInfo resolves the provider identity for the token.
	FetchUserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error)
}

// GenerateVerifier returns a fresh PKCE verifier.
func GenerateVerifier() string {
	return oauth2.GenerateVerifier()
}

// providerTimeout bounds every outbound call to the provider.
const providerTimeout = 10 * time.Second

// outboundContext installs a bounded-timeout HTTP client for the oauth2
// transport and derives a deadline for the call itself.
func outboundContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: providerTimeout})
	return context.WithTimeout(ctx, providerTimeout)
}
