// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package iwa

import (
	"context"

	"golang.org/x/oauth2"
)

type tokenSource struct {
	ctx  context.Context
	flow *Flow
}

// TokenSource returns an oauth2.TokenSource for the configured username and scopes, for use
// with oauth2.NewClient. Tokens are reused until they are about to expire. ctx is used for
// every acquisition the source makes.
func (f *Flow) TokenSource(ctx context.Context) oauth2.TokenSource {
	return oauth2.ReuseTokenSource(nil, &tokenSource{ctx: ctx, flow: f})
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	result, err := s.flow.Token(s.ctx)
	if err != nil {
		return nil, err
	}
	return &oauth2.Token{
		AccessToken: result.AccessToken,
		TokenType:   "Bearer",
		Expiry:      result.ExpiresOn,
	}, nil
}
