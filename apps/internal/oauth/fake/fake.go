// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package fake provides fake implementations of the clients used by oauth.Client, for tests.
package fake

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/wstrust"
)

// AccessTokens is a fake implementation of the accesstokens client. It is safe for concurrent use.
type AccessTokens struct {
	// Err is returned by every method when set.
	Err error
	// Result is what every method returns on success. When it grants no scopes, the
	// requested scopes are granted.
	Result accesstokens.TokenResponse

	mu           sync.Mutex
	RefreshCalls int
	SAMLCalls    int
	GotSAML      wstrust.SamlTokenInfo
}

func (f *AccessTokens) FromRefreshToken(ctx context.Context, authParams authority.AuthParams, refreshToken string) (accesstokens.TokenResponse, error) {
	f.mu.Lock()
	f.RefreshCalls++
	f.mu.Unlock()
	return f.result(authParams)
}

func (f *AccessTokens) FromSamlGrant(ctx context.Context, authParams authority.AuthParams, samlGrant wstrust.SamlTokenInfo) (accesstokens.TokenResponse, error) {
	f.mu.Lock()
	f.SAMLCalls++
	f.GotSAML = samlGrant
	f.mu.Unlock()
	return f.result(authParams)
}

func (f *AccessTokens) result(authParams authority.AuthParams) (accesstokens.TokenResponse, error) {
	if f.Err != nil {
		return accesstokens.TokenResponse{}, f.Err
	}
	tr := f.Result
	if len(tr.GrantedScopes) == 0 {
		tr.GrantedScopes = append(accesstokens.Scopes(nil), authParams.Scopes...)
	}
	return tr, nil
}

// Authority is a fake implementation of the authority client.
type Authority struct {
	Err   bool
	Realm authority.UserRealm
}

func (f Authority) UserRealm(ctx context.Context, params authority.AuthParams) (authority.UserRealm, error) {
	if f.Err {
		return authority.UserRealm{}, errors.New("user realm lookup failed")
	}
	return f.Realm, nil
}

// WSTrust is a fake implementation of the wstrust client.
type WSTrust struct {
	SAMLTokenInfoErr bool
	NegotiateErr     bool

	mu          sync.Mutex
	GotEndpoint string
}

func (f *WSTrust) SAMLTokenInfo(ctx context.Context, authParams authority.AuthParams, cloudAudienceURN, endpoint string) (wstrust.SamlTokenInfo, error) {
	f.mu.Lock()
	f.GotEndpoint = endpoint
	f.mu.Unlock()
	switch {
	case f.NegotiateErr:
		return wstrust.SamlTokenInfo{}, &wstrust.NegotiateError{Err: errors.New("no kerberos ticket")}
	case f.SAMLTokenInfoErr:
		return wstrust.SamlTokenInfo{}, errors.New("WS-Trust fault")
	}
	return wstrust.SamlTokenInfo{AssertionType: "urn:ietf:params:oauth:grant-type:saml1_1-bearer", Assertion: "<saml:Assertion/>"}, nil
}

// Negotiator is a fake SPNEGO negotiator.
type Negotiator struct {
	Err error
}

func (f Negotiator) Negotiate(ctx context.Context, req *http.Request) error {
	if f.Err != nil {
		return f.Err
	}
	req.Header.Set("Authorization", "Negotiate dGlja2V0")
	return nil
}
