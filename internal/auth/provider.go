package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

const googleIssuer = "https://accounts.google.com"

// Provider is a federated identity provider driven through the OAuth2
// authorization code flow with PKCE.
type Provider interface {
	AuthCodeURL(state, verifier, redirectURL string) string
	Exchange(ctx context.Context, code, verifier, redirectURL string) (*Identity, error)
}

type GoogleProvider struct {
	config   oauth2.Config
	verifier *oidc.IDTokenVerifier
}

// NewGoogleProvider discovers Google's OIDC endpoints. It performs a
// network request.
func NewGoogleProvider(ctx context.Context, clientID, clientSecret string) (*GoogleProvider, error) {
	if clientID == "" {
		return nil, errors.New("oauth client_id is not configured")
	}
	p, err := oidc.NewProvider(ctx, googleIssuer)
	if err != nil {
		return nil, fmt.Errorf("discover google oidc: %w", err)
	}
	return &GoogleProvider{
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     p.Endpoint(),
			Scopes:       []string{oidc.ScopeOpenID, "email", "profile"},
		},
		verifier: p.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

func (g *GoogleProvider) withRedirect(redirectURL string) *oauth2.Config {
	cfg := g.config
	cfg.RedirectURL = redirectURL
	return &cfg
}

func (g *GoogleProvider) AuthCodeURL(state, verifier, redirectURL string) string {
	return g.withRedirect(redirectURL).AuthCodeURL(state,
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(verifier),
		oauth2.SetAuthURLParam("prompt", "select_account"),
	)
}

type googleClaims struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades the code for tokens and returns the identity carried by
// the verified ID token.
func (g *GoogleProvider) Exchange(ctx context.Context, code, verifier, redirectURL string) (*Identity, error) {
	token, err := g.withRedirect(redirectURL).Exchange(ctx, code, oauth2.VerifierOption(verifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	raw, ok := token.Extra("id_token").(string)
	if !ok {
		return nil, errors.New("no id_token returned")
	}
	idToken, err := g.verifier.Verify(ctx, raw)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}

	var claims googleClaims
	if err := idToken.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	if !claims.EmailVerified {
		return nil, fmt.Errorf("email %s is not verified", claims.Email)
	}
	return &Identity{
		UserID:  claims.Subject,
		Email:   claims.Email,
		Name:    claims.Name,
		Picture: claims.Picture,
	}, nil
}
