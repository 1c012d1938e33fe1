// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package oauth runs the token requests against the identity provider and the federation
// service. It does not touch the cache.
package oauth

import (
	"context"
	"fmt"

	"github.com/AzureAD/msal-iwa-go/apps/errors"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/wstrust"
)

type accessTokens interface {
	FromRefreshToken(ctx context.Context, authParams authority.AuthParams, refreshToken string) (accesstokens.TokenResponse, error)
	FromSamlGrant(ctx context.Context, authParams authority.AuthParams, samlGrant wstrust.SamlTokenInfo) (accesstokens.TokenResponse, error)
}

type fetchAuthority interface {
	UserRealm(context.Context, authority.AuthParams) (authority.UserRealm, error)
}

type fetchWSTrust interface {
	SAMLTokenInfo(ctx context.Context, authParams authority.AuthParams, cloudAudienceURN, endpoint string) (wstrust.SamlTokenInfo, error)
}

// Client provides tokens for various types of token requests.
type Client struct {
	AccessTokens accessTokens
	Authority    fetchAuthority
	WSTrust      fetchWSTrust

	// WSTrustEndpoint overrides the windowstransport endpoint derived from the user realm.
	WSTrustEndpoint string
}

// New is the constructor for Client. wsTrustEndpoint may be empty.
func New(httpClient ops.HTTPClient, negotiator wstrust.Negotiator, wsTrustEndpoint string) *Client {
	r := ops.New(httpClient, negotiator)
	return &Client{
		AccessTokens:    r.AccessTokens(),
		Authority:       r.Authority(),
		WSTrust:         r.WSTrust(),
		WSTrustEndpoint: wsTrustEndpoint,
	}
}

// Refresh redeems a refresh token. Errors are returned as the token endpoint reported them.
func (t *Client) Refresh(ctx context.Context, authParams authority.AuthParams, refreshToken string) (accesstokens.TokenResponse, error) {
	if refreshToken == "" {
		return accesstokens.TokenResponse{}, fmt.Errorf("Refresh(): refresh token is empty")
	}
	return t.AccessTokens.FromRefreshToken(ctx, authParams, refreshToken)
}

// IntegratedWindows acquires tokens for authParams.Username with the Kerberos credentials of
// the signed in Windows user. Every error is a *errors.CredentialExchangeError naming the step
// that failed.
func (t *Client) IntegratedWindows(ctx context.Context, authParams authority.AuthParams) (accesstokens.TokenResponse, error) {
	if authParams.Username == "" {
		return accesstokens.TokenResponse{}, &errors.CredentialExchangeError{Stage: errors.StageUserRealm, Err: errors.New("username is required")}
	}

	realm, err := t.Authority.UserRealm(ctx, authParams)
	if err != nil {
		return accesstokens.TokenResponse{}, &errors.CredentialExchangeError{Stage: errors.StageUserRealm, Err: err}
	}
	if realm.AccountType != authority.Federated {
		err := fmt.Errorf("user %s is in a %q realm, Integrated Windows Authentication requires a federated account", authParams.Username, realm.AccountType)
		return accesstokens.TokenResponse{}, &errors.CredentialExchangeError{Stage: errors.StageUserRealm, Err: err}
	}

	endpoint, err := wstrust.Endpoint(realm, t.WSTrustEndpoint)
	if err != nil {
		return accesstokens.TokenResponse{}, &errors.CredentialExchangeError{Stage: errors.StageWSTrust, Err: err}
	}

	saml, err := t.WSTrust.SAMLTokenInfo(ctx, authParams, realm.CloudAudienceURN, endpoint)
	if err != nil {
		stage := errors.StageWSTrust
		var negErr *wstrust.NegotiateError
		if errors.As(err, &negErr) {
			stage = errors.StageNegotiate
		}
		return accesstokens.TokenResponse{}, &errors.CredentialExchangeError{Stage: stage, Err: err}
	}

	tr, err := t.AccessTokens.FromSamlGrant(ctx, authParams, saml)
	if err != nil {
		return accesstokens.TokenResponse{}, &errors.CredentialExchangeError{Stage: errors.StageTokenEndpoint, Err: err}
	}
	return tr, nil
}
