// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package public provides a client for authentication of "public" applications. A "public"
application is defined as an app that runs on client devices (android, ios, windows, linux, ...).
These devices are "untrusted" and access resources via web APIs that must authenticate.

The client acquires tokens silently from its cache, or through Integrated Windows
Authentication with the Kerberos credentials of the signed in domain user. Package iwa
combines the two into a single call.
*/
package public

/*
Design note:

public.Client holds a base.Client by value. base.Client statically assigns its attributes
during creation. As it doesn't have any pointers in it, anything borrowed from it, such as
Base.AuthParams is a copy that is free to be manipulated here.
*/

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/AzureAD/msal-iwa-go/apps/cache"
	"github.com/AzureAD/msal-iwa-go/apps/internal/base"
	"github.com/AzureAD/msal-iwa-go/apps/internal/logger"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops"
	"github.com/AzureAD/msal-iwa-go/apps/internal/shared"
)

// AuthResult contains the results of one token acquisition operation.
// For details see https://aka.ms/msal-net-authenticationresult
type AuthResult = base.AuthResult

// Account is a user whose tokens are held in the cache.
type Account = shared.Account

// TokenSource is where the access token of an AuthResult came from.
type TokenSource = base.TokenSource

const (
	TokenSourceIdentityProvider = base.TokenSourceIdentityProvider
	TokenSourceCache            = base.TokenSourceCache
	TokenSourceRefresh          = base.TokenSourceRefresh
)

// HTTPClient sends the requests made during token acquisition.
type HTTPClient = ops.HTTPClient

// Negotiator adds an SPNEGO "Authorization: Negotiate" header to a request for the federation
// service. See package kerberos for an implementation backed by the user's credential cache.
type Negotiator interface {
	Negotiate(ctx context.Context, req *http.Request) error
}

// Options configures the Client's behavior.
type Options struct {
	// Accessor controls cache persistence. By default there is no cache persistence.
	// This can be set with the WithCache() option.
	Accessor cache.Accessor

	// The host of the Azure Active Directory authority. The default is https://login.microsoftonline.com/common.
	// This can be changed with the WithAuthority() option.
	Authority string

	// HTTPClient sends all requests. The default is a shared *http.Client.
	HTTPClient HTTPClient

	// Negotiator authenticates the WS-Trust request. Without one, Integrated Windows
	// Authentication fails at the negotiate stage.
	Negotiator Negotiator

	// Logger receives acquisition decisions. Tokens are never logged.
	Logger *slog.Logger

	// WSTrustEndpoint overrides the windowstransport endpoint derived from the user realm.
	WSTrustEndpoint string
}

func (p *Options) validate() error {
	u, err := url.Parse(p.Authority)
	if err != nil {
		return fmt.Errorf("Authority options cannot be URL parsed: %w", err)
	}
	if u.Scheme != "https" {
		return fmt.Errorf("Authority(%s) did not start with https://", u.String())
	}
	if p.WSTrustEndpoint != "" {
		u, err := url.Parse(p.WSTrustEndpoint)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return fmt.Errorf("WSTrustEndpoint(%s) must be an absolute https URL", p.WSTrustEndpoint)
		}
	}
	return nil
}

// Option is an optional argument to the New constructor.
type Option func(o *Options)

// WithAuthority allows for a custom authority to be set. This must be a valid https url.
func WithAuthority(authority string) Option {
	return func(o *Options) {
		o.Authority = authority
	}
}

// WithCache allows you to set some type of cache for storing authentication tokens.
func WithCache(accessor cache.Accessor) Option {
	return func(o *Options) {
		o.Accessor = accessor
	}
}

// WithHTTPClient allows for a custom HTTP client to be set.
func WithHTTPClient(httpClient HTTPClient) Option {
	return func(o *Options) {
		o.HTTPClient = httpClient
	}
}

// WithNegotiator sets the SPNEGO negotiator used for Integrated Windows Authentication.
func WithNegotiator(n Negotiator) Option {
	return func(o *Options) {
		o.Negotiator = n
	}
}

// WithLogger sets the logger acquisition decisions are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = l
	}
}

// WithWSTrustEndpoint sets the windowstransport endpoint of the federation service, for
// deployments where it can't be derived from the user realm.
func WithWSTrustEndpoint(endpoint string) Option {
	return func(o *Options) {
		o.WSTrustEndpoint = endpoint
	}
}

// Client is a representation of authentication client for public applications as defined in the
// package doc. For more information, visit https://docs.microsoft.com/azure/active-directory/develop/msal-client-applications.
type Client struct {
	base base.Client
}

// New is the constructor for Client.
func New(clientID string, options ...Option) (Client, error) {
	opts := Options{
		Authority:  base.AuthorityPublicCloud,
		HTTPClient: shared.DefaultClient,
	}

	for _, o := range options {
		o(&opts)
	}
	if err := opts.validate(); err != nil {
		return Client{}, err
	}

	log, err := logger.New(opts.Logger)
	if err != nil {
		return Client{}, err
	}
	token := oauth.New(opts.HTTPClient, opts.Negotiator, opts.WSTrustEndpoint)
	base, err := base.New(clientID, opts.Authority, token, base.WithCacheAccessor(opts.Accessor), base.WithLogger(log))
	if err != nil {
		return Client{}, err
	}
	return Client{base}, nil
}

// AcquireSilentOptions are all the optional settings to an AcquireTokenSilent() call.
// These are set by using various AcquireSilentOption functions.
type AcquireSilentOptions struct {
	// Account represents the account to use. To set, use the WithSilentAccount() option.
	Account Account
}

// AcquireSilentOption changes options inside AcquireSilentOptions used in .AcquireTokenSilent().
type AcquireSilentOption func(a *AcquireSilentOptions)

// WithSilentAccount uses the passed account during an AcquireTokenSilent() call.
func WithSilentAccount(account Account) AcquireSilentOption {
	return func(a *AcquireSilentOptions) {
		a.Account = account
	}
}

// AcquireTokenSilent acquires a token from either the cache or using a refresh token. When the
// cache can't provide one the error is an *errors.CacheMissError. The cache is not written;
// pass a successful result to WriteBack.
func (pca Client) AcquireTokenSilent(ctx context.Context, scopes []string, options ...AcquireSilentOption) (AuthResult, error) {
	opts := AcquireSilentOptions{}
	for _, o := range options {
		o(&opts)
	}

	silentParameters := base.AcquireTokenSilentParameters{
		Scopes:  scopes,
		Account: opts.Account,
	}

	return pca.base.AcquireTokenSilent(ctx, silentParameters)
}

// AcquireTokenByIntegratedWindowsAuth acquires a security token from the authority for username
// with the Kerberos credentials of the signed in user. Failures are *errors.CredentialExchangeError.
// The cache is not written; pass a successful result to WriteBack.
func (pca Client) AcquireTokenByIntegratedWindowsAuth(ctx context.Context, scopes []string, username string) (AuthResult, error) {
	return pca.base.AcquireTokenByIntegratedWindowsAuth(ctx, base.AcquireTokenIntegratedWindowsParameters{
		Scopes:   scopes,
		Username: username,
	})
}

// WriteBack stores the tokens of result in the cache. Results served from the cache are not written.
func (pca Client) WriteBack(ctx context.Context, result AuthResult) error {
	return pca.base.WriteBack(ctx, result)
}

// Accounts gets all the accounts in the token cache.
// If there are no accounts in the cache the returned slice is empty.
func (pca Client) Accounts(ctx context.Context) ([]Account, error) {
	return pca.base.Accounts(ctx)
}
