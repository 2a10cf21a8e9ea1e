package platform

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/streamcaster/internal/domain/model"
	"github.com/ericfisherdev/streamcaster/internal/domain/port/driven"
)

// oauthConfig builds an oauth2.Config for creds, with the token URL replaced
// when the adapter was configured with an override.
func oauthConfig(creds OAuthCredentials, endpoint oauth2.Endpoint, tokenURL string, scopes []string) *oauth2.Config {
	if tokenURL != "" {
		endpoint.TokenURL = tokenURL
	}
	return &oauth2.Config{
		ClientID:     creds.ClientID,
		ClientSecret: creds.ClientSecret,
		Endpoint:     endpoint,
		Scopes:       scopes,
	}
}

// refreshOAuth exchanges the account's refresh token for a new access token
// using the standard refresh_token grant.
func refreshOAuth(ctx context.Context, cfg *oauth2.Config, httpClient *http.Client, account model.AuthorizedAccount) (model.TokenGrant, error) {
	if account.RefreshToken == "" {
		return model.TokenGrant{}, driven.ErrMissingCredentials
	}
	if cfg.ClientID == "" {
		return model.TokenGrant{}, fmt.Errorf("%w: oauth client not configured", driven.ErrMissingCredentials)
	}

	ctx = context.WithValue(ctx, oauth2.HTTPClient, httpClient)

	// An expired token forces the source to hit the token endpoint.
	src := cfg.TokenSource(ctx, &oauth2.Token{
		RefreshToken: account.RefreshToken,
		Expiry:       time.Now().Add(-time.Minute),
	})

	tok, err := src.Token()
	if err != nil {
		return model.TokenGrant{}, classifyOAuthError(err)
	}

	grant := model.TokenGrant{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		grant.Scopes = strings.Fields(scope)
	}
	return grant, nil
}

func classifyOAuthError(err error) error {
	var re *oauth2.RetrieveError
	if errors.As(err, &re) {
		code := 0
		if re.Response != nil {
			code = re.Response.StatusCode
		}
		switch {
		case code == http.StatusBadRequest || code == http.StatusUnauthorized || code == http.StatusForbidden:
			return fmt.Errorf("%w: %s", driven.ErrCredentialRejected, re.ErrorCode)
		case code >= 500:
			return fmt.Errorf("%w: token endpoint status %d", driven.ErrPlatformUnavailable, code)
		default:
			return fmt.Errorf("%w: token endpoint status %d", driven.ErrPlatformRejected, code)
		}
	}
	return fmt.Errorf("%w: %v", driven.ErrPlatformUnavailable, err)
}

// staticClient returns an HTTP client that authorizes every request with the
// account's current access token.
func staticClient(ctx context.Context, base *http.Client, accessToken string) *http.Client {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, base)
	return oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: accessToken,
		TokenType:   "Bearer",
	}))
}
