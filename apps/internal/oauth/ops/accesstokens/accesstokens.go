// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package accesstokens exposes a REST client for querying backend systems to get various types of
access tokens (oauth) for use in authentication.

These calls are of type "application/x-www-form-urlencoded".  This means we use url.Values to
represent arguments and then encode them into the POST body message.  We receive JSON in
return for the requests.  The request definition is defined in https://tools.ietf.org/html/rfc7521#section-4.2 .
*/
package accesstokens

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"strings"

	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/internal/grant"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/wstrust"
)

const (
	grantType     = "grant_type"
	clientID      = "client_id"
	clientInfo    = "client_info"
	clientInfoVal = "1"
)

type urlFormCaller interface {
	URLFormCall(ctx context.Context, endpoint string, qv url.Values, resp interface{}) error
}

// Client represents the REST calls to get tokens from token generator backends.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm urlFormCaller
}

// FromRefreshToken uses a refresh token (for refreshing credentials) to get a new access token.
func (c Client) FromRefreshToken(ctx context.Context, authParams authority.AuthParams, refreshToken string) (TokenResponse, error) {
	qv := url.Values{}
	qv.Set(grantType, grant.RefreshToken)
	qv.Set(clientID, authParams.ClientID)
	qv.Set(clientInfo, clientInfoVal)
	qv.Set("refresh_token", refreshToken)
	addScopeQueryParam(qv, authParams)

	return c.doTokenResp(ctx, authParams, qv)
}

// FromSamlGrant exchanges a SAML assertion from a federation service for tokens.
func (c Client) FromSamlGrant(ctx context.Context, authParams authority.AuthParams, samlGrant wstrust.SamlTokenInfo) (TokenResponse, error) {
	qv := url.Values{}
	switch samlGrant.AssertionType {
	case grant.SAMLV1:
		qv.Set(grantType, grant.SAMLV1)
	case grant.SAMLV2:
		qv.Set(grantType, grant.SAMLV2)
	default:
		return TokenResponse{}, fmt.Errorf("FromSamlGrant() received unknown SAML assertion type: %q", samlGrant.AssertionType)
	}

	qv.Set(clientID, authParams.ClientID)
	qv.Set(clientInfo, clientInfoVal)
	qv.Set("assertion", base64.StdEncoding.WithPadding(base64.StdPadding).EncodeToString([]byte(samlGrant.Assertion)))
	addScopeQueryParam(qv, authParams)

	return c.doTokenResp(ctx, authParams, qv)
}

func (c Client) doTokenResp(ctx context.Context, authParams authority.AuthParams, qv url.Values) (TokenResponse, error) {
	resp := TokenResponse{}
	if err := c.Comm.URLFormCall(ctx, authParams.Endpoints.TokenEndpoint, qv, &resp); err != nil {
		return TokenResponse{}, err
	}
	if len(resp.GrantedScopes) == 0 {
		// https://tools.ietf.org/html/rfc6749#section-3.3: no scope in the response means all were granted.
		resp.GrantedScopes = append(Scopes(nil), authParams.Scopes...)
	}
	return resp, resp.Validate()
}

// openid required to get an id token
// offline_access required to get a refresh token
// profile required to get the client_info field back
var detectDefaultScopes = map[string]bool{
	"openid":         true,
	"offline_access": true,
	"profile":        true,
}

var defaultScopes = []string{"openid", "offline_access", "profile"}

func addScopeQueryParam(queryParams url.Values, authParams authority.AuthParams) {
	scopes := make([]string, 0, len(authParams.Scopes)+len(defaultScopes))
	for _, scope := range authParams.Scopes {
		s := strings.TrimSpace(scope)
		if s == "" || detectDefaultScopes[s] {
			continue
		}
		scopes = append(scopes, s)
	}
	scopes = append(scopes, defaultScopes...)

	queryParams.Set("scope", strings.Join(scopes, " "))
}
