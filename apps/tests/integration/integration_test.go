// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package integration

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/AzureAD/msal-iwa-go/apps/cache/file"
	"github.com/AzureAD/msal-iwa-go/apps/iwa"
	"github.com/AzureAD/msal-iwa-go/apps/kerberos"
	"github.com/AzureAD/msal-iwa-go/apps/public"
)

const graphMe = "https://graph.microsoft.com/v1.0/me"

// liveFlow builds a Flow against the tenant named by the IWA_* environment variables. The
// test is skipped when they are not set or no Kerberos ticket is available.
func liveFlow(t *testing.T) *iwa.Flow {
	t.Helper()
	if os.Getenv("IWA_CLIENT_ID") == "" {
		t.Skip("IWA_CLIENT_ID is not set")
	}
	cfg, err := iwa.LoadConfig(os.Getenv("IWA_CONFIG"))
	if err != nil {
		t.Fatal(err)
	}
	negotiator, err := kerberos.New(kerberos.Options{})
	if err != nil {
		t.Skipf("no Kerberos credential cache: %s", err)
	}
	t.Cleanup(negotiator.Close)

	accessor, err := file.New(filepath.Join(t.TempDir(), "cache.json"))
	if err != nil {
		t.Fatal(err)
	}
	client, err := public.New(cfg.ClientID, public.WithAuthority(cfg.Authority), public.WithCache(accessor), public.WithNegotiator(negotiator))
	if err != nil {
		t.Fatal(err)
	}
	flow, err := iwa.New(cfg, client)
	if err != nil {
		t.Fatal(err)
	}
	return flow
}

func httpRequest(ctx context.Context, url, accessToken string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build new http request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http.Get(%s) failed: %w", url, err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("http.Get(%s): could not read body: %w", url, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("http.Get(%s): status %d: %s", url, resp.StatusCode, body)
	}
	return body, nil
}

func TestIntegratedWindowsAuth(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	flow := liveFlow(t)
	ctx := context.Background()

	first, err := flow.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if first.Metadata.TokenSource != public.TokenSourceIdentityProvider {
		t.Errorf("first token came from %v, want the identity provider", first.Metadata.TokenSource)
	}
	second, err := flow.Token(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if second.Metadata.TokenSource != public.TokenSourceCache {
		t.Errorf("second token came from %v, want the cache", second.Metadata.TokenSource)
	}

	if !slices.Contains(flow.Config().Scopes, "user.read") {
		return
	}
	if _, err := httpRequest(ctx, graphMe, second.AccessToken); err != nil {
		t.Error(err)
	}
}
