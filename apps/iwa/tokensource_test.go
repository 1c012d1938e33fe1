// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package iwa

import (
	"context"
	"testing"
	"time"

	"github.com/AzureAD/msal-iwa-go/apps/public"
)

func TestTokenSource(t *testing.T) {
	client := &fakeClient{silent: public.AuthResult{AccessToken: "at", ExpiresOn: time.Now().Add(time.Hour)}}
	src := newFlow(t, client).TokenSource(context.Background())

	for i := 0; i < 3; i++ {
		tok, err := src.Token()
		if err != nil {
			t.Fatal(err)
		}
		if tok.AccessToken != "at" || tok.Type() != "Bearer" || !tok.Valid() {
			t.Fatalf("Token() = %+v", tok)
		}
	}
	if client.silentCalls != 1 {
		t.Errorf("a valid token was acquired %d times, want 1", client.silentCalls)
	}
}
