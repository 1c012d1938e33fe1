// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package public_test

import (
	"context"
	"errors"

	msalerrors "github.com/AzureAD/msal-iwa-go/apps/errors"
	"github.com/AzureAD/msal-iwa-go/apps/kerberos"
	"github.com/AzureAD/msal-iwa-go/apps/public"
)

// This example demonstrates the general pattern for authenticating a domain user:
//   - create a client (only necessary at application start--it's best to reuse client instances)
//   - call AcquireTokenSilent() to search for a cached access token
//   - if the cache misses, acquire a new token with Integrated Windows Authentication
//   - write the new token back to the cache
func Example() {
	negotiator, err := kerberos.New(kerberos.Options{})
	if err != nil {
		// TODO: handle error
	}
	client, err := public.New("client_id",
		public.WithAuthority("https://login.microsoftonline.com/your_tenant"),
		public.WithNegotiator(negotiator),
	)
	if err != nil {
		// TODO: handle error
	}

	var result public.AuthResult
	scopes := []string{"user.read"}
	username := "john.doe@contoso.com"

	accounts, err := client.Accounts(context.TODO())
	if err != nil {
		// TODO: handle error
	}
	var account public.Account
	for _, a := range accounts {
		if a.PreferredUsername == username {
			account = a
			break
		}
	}
	result, err = client.AcquireTokenSilent(context.TODO(), scopes, public.WithSilentAccount(account))
	var miss *msalerrors.CacheMissError
	if errors.As(err, &miss) {
		result, err = client.AcquireTokenByIntegratedWindowsAuth(context.TODO(), scopes, username)
		if err == nil {
			err = client.WriteBack(context.TODO(), result)
		}
	}
	if err != nil {
		// TODO: handle error
	}

	// TODO: use the access token
	_ = result.AccessToken
}
