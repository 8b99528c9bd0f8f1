package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"

	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/idtoken"

	"github.com/tbourn/nemo-backend/internal/config"
	"github.com/tbourn/nemo-backend/internal/services"
)

// GoogleOAuth runs the authorization-code flow and validates the returned
// Google ID token.
type GoogleOAuth struct {
	cfg      *oauth2.Config
	validate func(ctx context.Context, idToken, audience string) (*idtoken.Payload, error)
}

// NewGoogleOAuth returns nil when no client id is configured.
func NewGoogleOAuth(c config.OAuthConfig) *GoogleOAuth {
	if c.ClientID == "" {
		return nil
	}
	return &GoogleOAuth{
		cfg: &oauth2.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			RedirectURL:  c.RedirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
		validate: idtoken.Validate,
	}
}

// AuthCodeURL is the consent page URL carrying state.
func (g *GoogleOAuth) AuthCodeURL(state string) string {
	return g.cfg.AuthCodeURL(state, oauth2.AccessTypeOnline)
}

// Exchange trades an authorization code for the caller's identity.
func (g *GoogleOAuth) Exchange(ctx context.Context, code string) (services.Identity, error) {
	if code == "" {
		return services.Identity{}, ErrInvalidToken
	}
	tok, err := g.cfg.Exchange(ctx, code)
	if err != nil {
		return services.Identity{}, goerr.Wrap(err, "failed to exchange authorization code")
	}
	raw, _ := tok.Extra("id_token").(string)
	if raw == "" {
		return services.Identity{}, errors.Join(ErrInvalidToken, errors.New("no id_token in response"))
	}
	return g.identity(ctx, raw)
}

func (g *GoogleOAuth) identity(ctx context.Context, raw string) (services.Identity, error) {
	payload, err := g.validate(ctx, raw, g.cfg.ClientID)
	if err != nil {
		return services.Identity{}, errors.Join(ErrInvalidToken, err)
	}
	if payload.Subject == "" {
		return services.Identity{}, ErrInvalidToken
	}
	return identityFromClaims(payload.Subject, payload.Claims), nil
}

// NewState returns a random value for the OAuth state parameter.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", goerr.Wrap(err, "failed to generate oauth state")
	}
	return hex.EncodeToString(b), nil
}
