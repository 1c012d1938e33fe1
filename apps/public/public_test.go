// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package public

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	msalerrors "github.com/AzureAD/msal-iwa-go/apps/errors"
	"github.com/AzureAD/msal-iwa-go/apps/internal/mock"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/fake"
	"github.com/kylelemons/godebug/pretty"
)

const (
	authorityURL = "https://login.microsoftonline.com/contoso"
	clientID     = "fake-client-id"
	username     = "john.doe@contoso.com"
)

var tokenScope = []string{"the_scope"}

// appendIWAResponses queues the user realm, WS-Trust and token endpoint replies of one
// successful Integrated Windows Authentication.
func appendIWAResponses(t *testing.T, client *mock.Client, accessToken string) {
	t.Helper()
	client.AppendResponse(
		mock.WithBody(mock.GetUserRealmBody("contoso.com", "fs.contoso.com")),
		mock.WithCallback(func(r *http.Request) {
			if want := "/common/userrealm/" + username; !strings.EqualFold(r.URL.Path, want) {
				t.Errorf("user realm path = %s, want %s", r.URL.Path, want)
			}
		}),
	)
	client.AppendResponse(
		mock.WithBody(mock.GetWSTrustResponse("assertion")),
		mock.WithCallback(func(r *http.Request) {
			if got := r.URL.String(); got != "https://fs.contoso.com/adfs/services/trust/13/windowstransport" {
				t.Errorf("WS-Trust endpoint = %s", got)
			}
			if got := r.Header.Get("Authorization"); !strings.HasPrefix(got, "Negotiate ") {
				t.Errorf("WS-Trust request was not negotiated: %q", got)
			}
		}),
	)
	client.AppendResponse(
		mock.WithBody(mock.GetAccessTokenBody(accessToken, mock.GetIDToken("contoso", "oid", username), "rt", mock.GetClientInfo("uid", "utid"), 3600)),
		mock.WithCallback(func(r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Error(err)
				return
			}
			if got := r.PostForm.Get("grant_type"); got != "urn:ietf:params:oauth:grant-type:saml1_1-bearer" {
				t.Errorf("grant_type = %s", got)
			}
		}),
	)
}

func TestNew(t *testing.T) {
	tests := []struct {
		desc    string
		options []Option
		err     bool
	}{
		{desc: "defaults"},
		{desc: "custom authority", options: []Option{WithAuthority(authorityURL)}},
		{desc: "Error: http authority", options: []Option{WithAuthority("http://login.microsoftonline.com/contoso")}, err: true},
		{desc: "Error: authority without tenant", options: []Option{WithAuthority("https://login.microsoftonline.com")}, err: true},
		{desc: "Error: relative WS-Trust endpoint", options: []Option{WithWSTrustEndpoint("/adfs/services/trust/13/windowstransport")}, err: true},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			_, err := New(clientID, test.options...)
			if (err != nil) != test.err {
				t.Fatalf("New() err = %v, want error: %v", err, test.err)
			}
		})
	}
	if _, err := New(""); err == nil {
		t.Error("New() accepted an empty client ID")
	}
}

func TestIntegratedWindowsAuthThenSilent(t *testing.T) {
	mockClient := mock.NewClient()
	appendIWAResponses(t, mockClient, "iwa-token")

	client, err := New(clientID, WithAuthority(authorityURL), WithHTTPClient(mockClient), WithNegotiator(fake.Negotiator{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	ar, err := client.AcquireTokenByIntegratedWindowsAuth(ctx, tokenScope, username)
	if err != nil {
		t.Fatal(err)
	}
	if ar.AccessToken != "iwa-token" || ar.Metadata.TokenSource != TokenSourceIdentityProvider {
		t.Fatalf("unexpected result: %q from %v", ar.AccessToken, ar.Metadata.TokenSource)
	}
	if accounts, err := client.Accounts(ctx); err != nil || len(accounts) != 0 {
		t.Fatalf("the cache was written before WriteBack: %v %v", accounts, err)
	}

	if err := client.WriteBack(ctx, ar); err != nil {
		t.Fatal(err)
	}
	accounts, err := client.Accounts(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := []Account{{
		HomeAccountID:     "uid.utid",
		Environment:       "login.microsoftonline.com",
		Realm:             "contoso",
		LocalAccountID:    "oid",
		AuthorityType:     "MSSTS",
		PreferredUsername: username,
		Name:              username,
		RawClientInfo:     mock.GetClientInfo("uid", "utid"),
	}}
	if diff := pretty.Compare(want, accounts); diff != "" {
		t.Fatalf("Accounts(): -want/+got:\n%s", diff)
	}

	silent, err := client.AcquireTokenSilent(ctx, tokenScope, WithSilentAccount(accounts[0]))
	if err != nil {
		t.Fatal(err)
	}
	if silent.AccessToken != "iwa-token" || silent.Metadata.TokenSource != TokenSourceCache {
		t.Errorf("unexpected silent result: %q from %v", silent.AccessToken, silent.Metadata.TokenSource)
	}
	if silent.IDToken.PreferredUsername != username {
		t.Errorf("cached id token was not decoded: %+v", silent.IDToken)
	}
	if mockClient.Calls() != 3 {
		t.Errorf("made %d requests, want 3", mockClient.Calls())
	}
}

func TestAcquireTokenSilentRefresh(t *testing.T) {
	mockClient := mock.NewClient()
	appendIWAResponses(t, mockClient, "iwa-token")
	client, err := New(clientID, WithAuthority(authorityURL), WithHTTPClient(mockClient), WithNegotiator(fake.Negotiator{}))
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()
	ar, err := client.AcquireTokenByIntegratedWindowsAuth(ctx, tokenScope, username)
	if err != nil {
		t.Fatal(err)
	}
	if err := client.WriteBack(ctx, ar); err != nil {
		t.Fatal(err)
	}

	// A scope without a cached access token is redeemed with the refresh token.
	mockClient.AppendResponse(
		mock.WithBody(mock.GetAccessTokenBody("refreshed-token", "", "rt2", mock.GetClientInfo("uid", "utid"), 3600)),
		mock.WithCallback(func(r *http.Request) {
			if err := r.ParseForm(); err != nil {
				t.Error(err)
				return
			}
			if got := r.PostForm.Get("refresh_token"); got != "rt" {
				t.Errorf("refresh_token = %q, want rt", got)
			}
		}),
	)
	refreshed, err := client.AcquireTokenSilent(ctx, []string{"other_scope"}, WithSilentAccount(ar.Account))
	if err != nil {
		t.Fatal(err)
	}
	if refreshed.AccessToken != "refreshed-token" || refreshed.Metadata.TokenSource != TokenSourceRefresh {
		t.Fatalf("unexpected result: %q from %v", refreshed.AccessToken, refreshed.Metadata.TokenSource)
	}

	// Until it is written back the refreshed token isn't cached, so the next call refreshes again and is rejected.
	mockClient.AppendResponse(
		mock.WithHTTPStatusCode(http.StatusBadRequest),
		mock.WithBody(mock.GetOAuthErrorBody("invalid_grant", "AADSTS70000: refresh token expired")),
	)
	_, err = client.AcquireTokenSilent(ctx, []string{"other_scope"}, WithSilentAccount(ar.Account))
	var miss *msalerrors.CacheMissError
	if !errors.As(err, &miss) || miss.Reason != msalerrors.RefreshRejected {
		t.Fatalf("got %v, want a RefreshRejected cache miss", err)
	}

	// Server errors are not cache misses.
	mockClient.AppendResponse(mock.WithHTTPStatusCode(http.StatusServiceUnavailable), mock.WithBody([]byte("unavailable")))
	_, err = client.AcquireTokenSilent(ctx, []string{"other_scope"}, WithSilentAccount(ar.Account))
	if err == nil || msalerrors.IsCacheMiss(err) {
		t.Fatalf("got %v, want a fatal error", err)
	}
}

func TestAcquireTokenSilentNoAccount(t *testing.T) {
	client, err := New(clientID, WithHTTPClient(mock.NewClient()))
	if err != nil {
		t.Fatal(err)
	}
	_, err = client.AcquireTokenSilent(context.Background(), tokenScope)
	if !msalerrors.IsCacheMiss(err) {
		t.Fatalf("got %v, want a cache miss", err)
	}
}

func TestIntegratedWindowsAuthFailures(t *testing.T) {
	tests := []struct {
		desc       string
		negotiator Negotiator
		responses  func(*mock.Client)
		wantStage  msalerrors.Stage
	}{
		{
			desc:       "managed account",
			negotiator: fake.Negotiator{},
			responses: func(c *mock.Client) {
				c.AppendResponse(mock.WithBody(mock.GetUserRealmBody("contoso.com", "")))
			},
			wantStage: msalerrors.StageUserRealm,
		},
		{
			desc: "no negotiator",
			responses: func(c *mock.Client) {
				c.AppendResponse(mock.WithBody(mock.GetUserRealmBody("contoso.com", "fs.contoso.com")))
			},
			wantStage: msalerrors.StageNegotiate,
		},
		{
			desc:       "no kerberos ticket",
			negotiator: fake.Negotiator{Err: errors.New("no ticket")},
			responses: func(c *mock.Client) {
				c.AppendResponse(mock.WithBody(mock.GetUserRealmBody("contoso.com", "fs.contoso.com")))
			},
			wantStage: msalerrors.StageNegotiate,
		},
		{
			desc:       "federation service fault",
			negotiator: fake.Negotiator{},
			responses: func(c *mock.Client) {
				c.AppendResponse(mock.WithBody(mock.GetUserRealmBody("contoso.com", "fs.contoso.com")))
				c.AppendResponse(mock.WithHTTPStatusCode(http.StatusInternalServerError), mock.WithBody(mock.GetWSTrustFault("MSIS3127")))
			},
			wantStage: msalerrors.StageWSTrust,
		},
		{
			desc:       "token endpoint rejects the assertion",
			negotiator: fake.Negotiator{},
			responses: func(c *mock.Client) {
				c.AppendResponse(mock.WithBody(mock.GetUserRealmBody("contoso.com", "fs.contoso.com")))
				c.AppendResponse(mock.WithBody(mock.GetWSTrustResponse("assertion")))
				c.AppendResponse(mock.WithHTTPStatusCode(http.StatusBadRequest), mock.WithBody(mock.GetOAuthErrorBody("invalid_grant", "AADSTS50126")))
			},
			wantStage: msalerrors.StageTokenEndpoint,
		},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			mockClient := mock.NewClient()
			test.responses(mockClient)
			options := []Option{WithAuthority(authorityURL), WithHTTPClient(mockClient)}
			if test.negotiator != nil {
				options = append(options, WithNegotiator(test.negotiator))
			}
			client, err := New(clientID, options...)
			if err != nil {
				t.Fatal(err)
			}

			_, err = client.AcquireTokenByIntegratedWindowsAuth(context.Background(), tokenScope, username)
			var ce *msalerrors.CredentialExchangeError
			if !errors.As(err, &ce) {
				t.Fatalf("got %v, want a CredentialExchangeError", err)
			}
			if ce.Stage != test.wantStage {
				t.Errorf("Stage = %s, want %s", ce.Stage, test.wantStage)
			}
			if mockClient.Pending() != 0 {
				t.Errorf("%d responses were not requested", mockClient.Pending())
			}
			if accounts, _ := client.Accounts(context.Background()); len(accounts) != 0 {
				t.Error("a failed credential exchange must not write the cache")
			}
		})
	}
}
