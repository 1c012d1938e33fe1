// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package main

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/security/keyvault/azsecrets"
	"github.com/AzureAD/msal-iwa-go/apps/iwa"
)

// getSecret reads the latest version of a secret, authenticating as the Flow's user.
func getSecret(ctx context.Context, flow *iwa.Flow, vaultURL, name string) (string, error) {
	client, err := azsecrets.NewClient(vaultURL, iwa.NewCredential(flow), nil)
	if err != nil {
		return "", err
	}
	resp, err := client.GetSecret(ctx, name, "", nil)
	if err != nil {
		return "", err
	}
	if resp.Value == nil {
		return "", nil
	}
	return *resp.Value, nil
}
