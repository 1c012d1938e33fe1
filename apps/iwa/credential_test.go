// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package iwa

import (
	"context"
	"testing"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
	msalerrors "github.com/AzureAD/msal-iwa-go/apps/errors"
	"github.com/AzureAD/msal-iwa-go/apps/public"
)

func TestCredential(t *testing.T) {
	expires := time.Now().Add(time.Hour).Truncate(time.Second)
	client := &fakeClient{silent: public.AuthResult{AccessToken: "vault-token", ExpiresOn: expires}}
	cred := NewCredential(newFlow(t, client))

	tok, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{Scopes: []string{"https://vault.azure.net/.default"}})
	if err != nil {
		t.Fatal(err)
	}
	if tok.Token != "vault-token" || !tok.ExpiresOn.Equal(expires) {
		t.Errorf("GetToken() = %+v", tok)
	}

	client.silentErr = &msalerrors.InvalidScopeError{Reason: "empty"}
	if _, err := cred.GetToken(context.Background(), policy.TokenRequestOptions{}); !msalerrors.As(err, new(*msalerrors.InvalidScopeError)) {
		t.Errorf("GetToken() err = %v, want the silent error", err)
	}
}
