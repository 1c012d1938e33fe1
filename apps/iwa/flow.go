// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package iwa acquires tokens for a domain user in one call: silently from the token cache
when it can, otherwise through Integrated Windows Authentication.

Only a cache miss from the silent attempt leads to Integrated Windows Authentication. Every
other failure is returned unchanged. Tokens obtained from the identity provider are written
back to the cache before they are returned, so the next call for the same user and scopes
is served from the cache.

	client, err := public.New(cfg.ClientID, public.WithAuthority(cfg.Authority), public.WithNegotiator(negotiator))
	if err != nil {
		// TODO: handle error
	}
	flow, err := iwa.New(cfg, client)
	if err != nil {
		// TODO: handle error
	}
	result, err := flow.Token(ctx)
*/
package iwa

import (
	"context"
	"log/slog"
	"sort"
	"strings"

	"github.com/AzureAD/msal-iwa-go/apps/errors"
	"github.com/AzureAD/msal-iwa-go/apps/internal/logger"
	"github.com/AzureAD/msal-iwa-go/apps/public"
	"golang.org/x/sync/singleflight"
)

// acquirer is the token client a Flow drives. In production it is a public.Client.
type acquirer interface {
	Accounts(ctx context.Context) ([]public.Account, error)
	AcquireTokenSilent(ctx context.Context, scopes []string, options ...public.AcquireSilentOption) (public.AuthResult, error)
	AcquireTokenByIntegratedWindowsAuth(ctx context.Context, scopes []string, username string) (public.AuthResult, error)
	WriteBack(ctx context.Context, result public.AuthResult) error
}

// Flow acquires tokens silently, falling back to Integrated Windows Authentication.
// It is safe for concurrent use.
type Flow struct {
	cfg    Config
	client acquirer
	logger logger.LoggerInterface

	// group is set when concurrent fallbacks are coalesced.
	group *singleflight.Group
}

// Option is an optional argument to New.
type Option func(f *Flow)

// WithCoalescing makes concurrent calls that fall back for the same username and scopes
// share one Integrated Windows Authentication. The shared exchange runs with the context of
// the call that started it.
func WithCoalescing() Option {
	return func(f *Flow) {
		f.group = &singleflight.Group{}
	}
}

// WithLogger sets the logger that state transitions are reported to. Tokens are never logged.
func WithLogger(l *slog.Logger) Option {
	return func(f *Flow) {
		if log, err := logger.New(l); err == nil {
			f.logger = log
		}
	}
}

// New creates a Flow for cfg. client is usually a public.Client created for the same
// authority and client ID.
func New(cfg Config, client acquirer, options ...Option) (*Flow, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if client == nil {
		return nil, errors.New("client is required")
	}
	log, err := logger.New(nil)
	if err != nil {
		return nil, err
	}
	f := &Flow{cfg: cfg, client: client, logger: log}
	for _, o := range options {
		o(f)
	}
	return f, nil
}

// Config returns the configuration f was created with.
func (f *Flow) Config() Config {
	return f.cfg
}

// Token acquires a token for the configured username and scopes.
func (f *Flow) Token(ctx context.Context) (public.AuthResult, error) {
	return f.AcquireToken(ctx, f.cfg.Scopes, f.cfg.Username)
}

// AcquireToken returns a token for username and scopes. The cache is tried first; only when
// it reports a miss (*errors.CacheMissError) are the user's Kerberos credentials exchanged for
// a token, which is then written to the cache. Any other error, from either step, is returned
// as is and leaves the cache unchanged.
func (f *Flow) AcquireToken(ctx context.Context, scopes []string, username string) (public.AuthResult, error) {
	fields := []any{logger.Field("username", username), logger.Field("scopes", strings.Join(scopes, " "))}

	accounts, err := f.client.Accounts(ctx)
	if err != nil {
		f.logger.Log(ctx, logger.Err, "reading cached accounts failed", append(fields, logger.Field("error", err))...)
		return public.AuthResult{}, err
	}
	account, found := ResolveAccount(accounts, username)
	f.logger.Log(ctx, logger.Debug, "silent attempt", append(fields, logger.Field("account_found", found))...)

	result, err := f.client.AcquireTokenSilent(ctx, scopes, public.WithSilentAccount(account))
	if err == nil {
		// Refreshed tokens are new; cache hits make this a no-op.
		if err := f.client.WriteBack(ctx, result); err != nil {
			f.logger.Log(ctx, logger.Err, "cache write-back failed", append(fields, logger.Field("error", err))...)
			return public.AuthResult{}, err
		}
		f.logger.Log(ctx, logger.Info, "token acquired silently", append(fields, logger.Field("token_source", result.Metadata.TokenSource.String()))...)
		return result, nil
	}

	var miss *errors.CacheMissError
	if !errors.As(err, &miss) {
		f.logger.Log(ctx, logger.Err, "silent acquisition failed", append(fields, logger.Field("error", err))...)
		return public.AuthResult{}, err
	}
	f.logger.Log(ctx, logger.Debug, "cache miss, falling back to Integrated Windows Authentication", append(fields, logger.Field("reason", string(miss.Reason)))...)

	result, err = f.fallback(ctx, scopes, username)
	if err != nil {
		f.logger.Log(ctx, logger.Warn, "Integrated Windows Authentication failed", append(fields, logger.Field("error", err))...)
		return public.AuthResult{}, err
	}
	f.logger.Log(ctx, logger.Info, "token acquired", append(fields, logger.Field("token_source", result.Metadata.TokenSource.String()))...)
	return result, nil
}

// fallback runs the credential exchange and writes its result to the cache.
func (f *Flow) fallback(ctx context.Context, scopes []string, username string) (public.AuthResult, error) {
	exchange := func() (public.AuthResult, error) {
		result, err := f.client.AcquireTokenByIntegratedWindowsAuth(ctx, scopes, username)
		if err != nil {
			return public.AuthResult{}, err
		}
		if err := f.client.WriteBack(ctx, result); err != nil {
			return public.AuthResult{}, err
		}
		return result, nil
	}
	if f.group == nil {
		return exchange()
	}

	v, err, shared := f.group.Do(coalescingKey(scopes, username), func() (interface{}, error) {
		return exchange()
	})
	if shared {
		f.logger.Log(ctx, logger.Debug, "shared a concurrent Integrated Windows Authentication", logger.Field("username", username))
	}
	if err != nil {
		return public.AuthResult{}, err
	}
	return v.(public.AuthResult), nil
}

// coalescingKey identifies requests that can share one credential exchange.
func coalescingKey(scopes []string, username string) string {
	normalized := make([]string, 0, len(scopes))
	for _, s := range scopes {
		normalized = append(normalized, strings.ToLower(strings.TrimSpace(s)))
	}
	sort.Strings(normalized)
	return username + "\x00" + strings.Join(normalized, " ")
}
