// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package iwa

import "github.com/AzureAD/msal-iwa-go/apps/public"

// ResolveAccount returns the first account whose username equals username. The comparison
// is exact and case-sensitive. Not finding one is a normal outcome.
func ResolveAccount(accounts []public.Account, username string) (public.Account, bool) {
	for _, account := range accounts {
		if account.PreferredUsername == username {
			return account, true
		}
	}
	return public.Account{}, false
}
