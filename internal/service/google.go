package service

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/tarotdeck/backend/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const googleIssuer = "https://accounts.google.com"

// GoogleAuth signs users in with Google and issues the app's own JWT.
type GoogleAuth struct {
	oauth    *oauth2.Config
	verifier *oidc.IDTokenVerifier
	auth     *AuthService
}

type googleIDClaims struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
}

// NewGoogleAuth discovers Google's OIDC configuration. It performs a network call.
func NewGoogleAuth(ctx context.Context, clientID, clientSecret, redirectURL string, auth *AuthService) (*GoogleAuth, error) {
	provider, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("failed to init google oidc provider: %w", err)
	}

	return &GoogleAuth{
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
		auth:     auth,
	}, nil
}

// AuthURL returns the consent page URL for state.
func (g *GoogleAuth) AuthURL(state string) string {
	return g.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for an app session.
func (g *GoogleAuth) Exchange(ctx context.Context, code string) (*domain.LoginResponse, error) {
	tok, err := g.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, domain.ErrUnauthorized("failed to exchange code")
	}

	rawIDToken, ok := tok.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, domain.ErrUnauthorized("missing id_token")
	}

	idToken, err := g.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid id_token")
	}

	var claims googleIDClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, domain.ErrUnauthorized("failed to decode token claims")
	}
	if claims.Sub == "" || claims.Email == "" {
		return nil, domain.ErrUnauthorized("token missing required claims")
	}
	if !claims.EmailVerified {
		return nil, domain.ErrForbidden("google email is not verified")
	}

	return g.auth.LoginWithGoogle(ctx, claims.Sub, claims.Email)
}

// NewOAuthState returns a random value for the state cookie.
func NewOAuthState() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
