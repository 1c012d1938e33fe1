// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package iwa

import (
	"context"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azcore/policy"
)

// Credential authenticates Azure SDK clients as the configured user.
type Credential struct {
	flow *Flow
}

var _ azcore.TokenCredential = (*Credential)(nil)

// NewCredential creates a Credential acquiring tokens through flow.
func NewCredential(flow *Flow) *Credential {
	return &Credential{flow: flow}
}

// GetToken implements azcore.TokenCredential. When opts names no scopes, the scopes of the
// Flow's Config are requested.
func (c *Credential) GetToken(ctx context.Context, opts policy.TokenRequestOptions) (azcore.AccessToken, error) {
	scopes := opts.Scopes
	if len(scopes) == 0 {
		scopes = c.flow.cfg.Scopes
	}
	result, err := c.flow.AcquireToken(ctx, scopes, c.flow.cfg.Username)
	if err != nil {
		return azcore.AccessToken{}, err
	}
	return azcore.AccessToken{Token: result.AccessToken, ExpiresOn: result.ExpiresOn}, nil
}
