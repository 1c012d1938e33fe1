// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package base contains a "Base" client that is used by the external public.Client.
// Base holds shared attributes that must be available to the public client and methods
// that act as shared calls: silent acquisition, Integrated Windows Authentication and the
// cache write-back that follows a successful acquisition.
package base

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/AzureAD/msal-iwa-go/apps/cache"
	"github.com/AzureAD/msal-iwa-go/apps/errors"
	"github.com/AzureAD/msal-iwa-go/apps/internal/base/internal/storage"
	"github.com/AzureAD/msal-iwa-go/apps/internal/logger"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-iwa-go/apps/internal/shared"
	"github.com/google/uuid"
)

const (
	// AuthorityPublicCloud is the default AAD authority host
	AuthorityPublicCloud = "https://login.microsoftonline.com/common"
	scopeSeparator       = " "
)

// manager provides an internal cache. It is defined to allow faking the cache in tests.
// In all production use it is a *storage.Manager.
type manager interface {
	Read(ctx context.Context, authParameters authority.AuthParams) (storage.TokenResponse, error)
	Write(authParameters authority.AuthParams, tokenResponse accesstokens.TokenResponse) (shared.Account, error)
	AllAccounts() []shared.Account
}

// tokenClient requests tokens from the identity provider. In production it is an *oauth.Client.
type tokenClient interface {
	Refresh(ctx context.Context, authParams authority.AuthParams, refreshToken string) (accesstokens.TokenResponse, error)
	IntegratedWindows(ctx context.Context, authParams authority.AuthParams) (accesstokens.TokenResponse, error)
}

// TokenSource is the source of a token.
type TokenSource int

const (
	// TokenSourceIdentityProvider indicates the token came from a credential exchange with the identity provider.
	TokenSourceIdentityProvider TokenSource = iota
	// TokenSourceCache indicates the access token was served from the cache.
	TokenSourceCache
	// TokenSourceRefresh indicates the access token was obtained by redeeming a cached refresh token.
	TokenSourceRefresh
)

func (s TokenSource) String() string {
	switch s {
	case TokenSourceCache:
		return "cache"
	case TokenSourceRefresh:
		return "refresh"
	}
	return "identity_provider"
}

// AuthResultMetadata which contains meta data for the AuthResult
type AuthResultMetadata struct {
	TokenSource   TokenSource
	CorrelationID string
}

// AuthResult contains the results of one token acquisition operation.
// For details see https://aka.ms/msal-net-authenticationresult
type AuthResult struct {
	Account       shared.Account
	IDToken       accesstokens.IDToken
	AccessToken   string
	ExpiresOn     time.Time
	GrantedScopes []string
	Metadata      AuthResultMetadata

	// token is what the identity provider returned. It is nil for results served from the cache.
	token      *accesstokens.TokenResponse
	authParams authority.AuthParams
}

// AuthResultFromStorage creates an AuthResult from a storage token response (which is generated from the cache).
func AuthResultFromStorage(storageTokenResponse storage.TokenResponse) (AuthResult, error) {
	if err := storageTokenResponse.AccessToken.Validate(); err != nil {
		return AuthResult{}, fmt.Errorf("problem with access token in StorageTokenResponse: %w", err)
	}

	var idToken accesstokens.IDToken
	if !storageTokenResponse.IDToken.IsZero() {
		var err error
		idToken, err = accesstokens.NewIDToken(storageTokenResponse.IDToken.Secret)
		if err != nil {
			// Caches written by other tools may hold id tokens we can't decode.
			idToken = accesstokens.IDToken{RawToken: storageTokenResponse.IDToken.Secret}
		}
	}
	return AuthResult{
		Account:       storageTokenResponse.Account,
		IDToken:       idToken,
		AccessToken:   storageTokenResponse.AccessToken.Secret,
		ExpiresOn:     storageTokenResponse.AccessToken.ExpiresOn.T,
		GrantedScopes: strings.Split(storageTokenResponse.AccessToken.Scopes, scopeSeparator),
		Metadata:      AuthResultMetadata{TokenSource: TokenSourceCache},
	}, nil
}

// NewAuthResult creates an AuthResult.
func NewAuthResult(tokenResponse accesstokens.TokenResponse, account shared.Account) (AuthResult, error) {
	if err := tokenResponse.Validate(); err != nil {
		return AuthResult{}, err
	}
	return AuthResult{
		Account:       account,
		IDToken:       tokenResponse.IDToken,
		AccessToken:   tokenResponse.AccessToken,
		ExpiresOn:     tokenResponse.ExpiresOn.T,
		GrantedScopes: []string(tokenResponse.GrantedScopes),
		token:         &tokenResponse,
	}, nil
}

// Client is a base client that provides access to common methods and primatives that
// can be used by multiple clients.
type Client struct {
	Token   tokenClient
	manager manager // *storage.Manager or fakeManager in tests

	AuthParams authority.AuthParams // DO NOT EVER MAKE THIS A POINTER! See "Note" in New().

	// cacheAccessorMu serializes Load, cache access and Save so that hook sequences never interleave.
	cacheAccessorMu *sync.Mutex
	cacheAccessor   cache.Accessor
	logger          logger.LoggerInterface
}

// Option is an optional argument to the New constructor.
type Option func(c *Client)

// WithCacheAccessor allows you to set some type of cache for storing authentication tokens.
func WithCacheAccessor(ca cache.Accessor) Option {
	return func(c *Client) {
		c.cacheAccessor = ca
	}
}

// WithLogger sets the logger acquisition decisions are reported to.
func WithLogger(l logger.LoggerInterface) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New is the constructor for Base.
func New(clientID string, authorityURI string, token tokenClient, options ...Option) (Client, error) {
	if clientID == "" {
		return Client{}, errors.New("client ID is required")
	}
	authInfo, err := authority.NewInfoFromAuthorityURI(authorityURI)
	if err != nil {
		return Client{}, err
	}
	discard, err := logger.New(nil)
	if err != nil {
		return Client{}, err
	}
	authParams := authority.NewAuthParams(clientID, authInfo)
	client := Client{ // Note: Hey, don't even THINK about making Base into *Base. See "design notes" in public.go.
		Token:           token,
		AuthParams:      authParams,
		cacheAccessorMu: &sync.Mutex{},
		manager:         storage.New(),
		logger:          discard,
	}
	for _, o := range options {
		o(&client)
	}
	return client, nil
}

// AcquireTokenSilentParameters contains the parameters to acquire a token silently (from cache).
type AcquireTokenSilentParameters struct {
	Scopes  []string
	Account shared.Account
}

// AcquireTokenSilent returns a token for silent.Account from the cache, redeeming a cached
// refresh token when the access token is missing or about to expire. It returns a
// *errors.CacheMissError when the cache cannot satisfy the request. It never writes the cache.
func (b Client) AcquireTokenSilent(ctx context.Context, silent AcquireTokenSilentParameters) (AuthResult, error) {
	scopes, err := NormalizeScopes(silent.Scopes)
	if err != nil {
		return AuthResult{}, err
	}
	if silent.Account.IsZero() {
		return AuthResult{}, &errors.CacheMissError{Reason: errors.NoAccount}
	}

	authParams := b.AuthParams // This is a copy, as we dont' have a pointer receiver and authParams is not a pointer.
	authParams.Scopes = scopes
	authParams.AuthorizationType = authority.ATRefreshToken
	authParams.HomeAccountID = silent.Account.HomeAccountID
	authParams.CorrelationID = uuid.New().String()

	storageTokenResponse, err := b.readCache(ctx, authParams)
	if err != nil {
		return AuthResult{}, err
	}

	if storageTokenResponse.AccessToken.Secret != "" {
		result, err := AuthResultFromStorage(storageTokenResponse)
		if err == nil {
			result.Account = silent.Account
			result.Metadata.CorrelationID = authParams.CorrelationID
			result.authParams = authParams
			b.logger.Log(ctx, logger.Debug, "access token served from cache", logger.Field("correlation_id", authParams.CorrelationID))
			return result, nil
		}
	}

	rt := storageTokenResponse.RefreshToken.GetSecret()
	if rt == "" {
		b.logger.Log(ctx, logger.Debug, "no usable access token and no refresh token cached", logger.Field("correlation_id", authParams.CorrelationID))
		return AuthResult{}, &errors.CacheMissError{Reason: errors.NoRefreshToken}
	}

	token, err := b.Token.Refresh(ctx, authParams, rt)
	if err != nil {
		if refreshRejected(err) {
			b.logger.Log(ctx, logger.Debug, "refresh token was rejected", logger.Field("correlation_id", authParams.CorrelationID))
			return AuthResult{}, &errors.CacheMissError{Reason: errors.RefreshRejected, Err: err}
		}
		return AuthResult{}, err
	}

	result, err := NewAuthResult(token, silent.Account)
	if err != nil {
		return AuthResult{}, err
	}
	result.Metadata = AuthResultMetadata{TokenSource: TokenSourceRefresh, CorrelationID: authParams.CorrelationID}
	result.authParams = authParams
	return result, nil
}

// refreshRejected reports whether the identity provider refused a refresh token in a way
// that only a new credential exchange can fix.
func refreshRejected(err error) bool {
	var callErr errors.CallErr
	if !errors.As(err, &callErr) {
		return false
	}
	switch callErr.OAuth.Code {
	case "invalid_grant", "interaction_required":
		return true
	}
	return false
}

// AcquireTokenIntegratedWindowsParameters contains the parameters for Integrated Windows Authentication.
type AcquireTokenIntegratedWindowsParameters struct {
	Scopes   []string
	Username string
}

// AcquireTokenByIntegratedWindowsAuth acquires a token for params.Username with the Kerberos
// credentials of the signed in user. Failures are *errors.CredentialExchangeError. It does
// not write the cache.
func (b Client) AcquireTokenByIntegratedWindowsAuth(ctx context.Context, params AcquireTokenIntegratedWindowsParameters) (AuthResult, error) {
	scopes, err := NormalizeScopes(params.Scopes)
	if err != nil {
		return AuthResult{}, err
	}

	authParams := b.AuthParams // This is a copy, as we dont' have a pointer receiver and .AuthParams is not a pointer.
	authParams.Scopes = scopes
	authParams.Username = params.Username
	authParams.AuthorizationType = authority.ATWindowsIntegrated
	authParams.CorrelationID = uuid.New().String()

	token, err := b.Token.IntegratedWindows(ctx, authParams)
	if err != nil {
		return AuthResult{}, err
	}

	username := token.IDToken.Username()
	if username == "" {
		username = params.Username
	}
	account := shared.NewAccount(
		token.HomeAccountID(),
		authParams.AuthorityInfo.Host,
		authParams.AuthorityInfo.Tenant,
		token.IDToken.LocalAccountID(),
		authParams.AuthorityInfo.AuthorityType,
		username,
	)
	account.Name = token.IDToken.Name
	account.RawClientInfo = token.ClientInfo.Raw

	result, err := NewAuthResult(token, account)
	if err != nil {
		return AuthResult{}, &errors.CredentialExchangeError{Stage: errors.StageTokenEndpoint, Err: err}
	}
	result.Metadata = AuthResultMetadata{TokenSource: TokenSourceIdentityProvider, CorrelationID: authParams.CorrelationID}
	result.authParams = authParams
	return result, nil
}

// WriteBack upserts the tokens of a successful acquisition into the cache, bracketed by the
// Accessor's Load and Save. Results served from the cache carry nothing new and are not written.
func (b Client) WriteBack(ctx context.Context, result AuthResult) error {
	if result.token == nil {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	b.cacheAccessorMu.Lock()
	defer b.cacheAccessorMu.Unlock()

	key := result.token.HomeAccountID()
	if key == "" {
		key = result.authParams.HomeAccountID
	}
	if err := b.load(ctx, key); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if _, err := b.manager.Write(result.authParams, *result.token); err != nil {
		return err
	}
	return b.save(ctx, key)
}

// Accounts returns the accounts in the cache, after loading it through the Accessor.
func (b Client) Accounts(ctx context.Context) ([]shared.Account, error) {
	b.cacheAccessorMu.Lock()
	defer b.cacheAccessorMu.Unlock()

	if err := b.load(ctx, ""); err != nil {
		return nil, err
	}
	return b.manager.AllAccounts(), nil
}

func (b Client) readCache(ctx context.Context, authParams authority.AuthParams) (storage.TokenResponse, error) {
	b.cacheAccessorMu.Lock()
	defer b.cacheAccessorMu.Unlock()

	if err := b.load(ctx, authParams.HomeAccountID); err != nil {
		return storage.TokenResponse{}, err
	}
	return b.manager.Read(ctx, authParams)
}

func (b Client) load(ctx context.Context, key string) error {
	if b.cacheAccessor == nil {
		return nil
	}
	if s, ok := b.manager.(cache.Serializer); ok {
		if err := b.cacheAccessor.Load(ctx, s, key); err != nil {
			return fmt.Errorf("loading the token cache: %w", err)
		}
	}
	return nil
}

func (b Client) save(ctx context.Context, key string) error {
	if b.cacheAccessor == nil {
		return nil
	}
	if s, ok := b.manager.(cache.Serializer); ok {
		if err := b.cacheAccessor.Save(ctx, s, key); err != nil {
			return fmt.Errorf("saving the token cache: %w", err)
		}
	}
	return nil
}

// NormalizeScopes lower cases, trims and de-duplicates scopes, preserving their order. An empty
// list or an empty entry is an *errors.InvalidScopeError.
func NormalizeScopes(scopes []string) ([]string, error) {
	if len(scopes) == 0 {
		return nil, &errors.InvalidScopeError{Scopes: scopes, Reason: "at least one scope is required"}
	}
	seen := make(map[string]bool, len(scopes))
	out := make([]string, 0, len(scopes))
	for _, s := range scopes {
		s = strings.ToLower(strings.TrimSpace(s))
		if s == "" {
			return nil, &errors.InvalidScopeError{Scopes: scopes, Reason: "scopes cannot be empty or whitespace"}
		}
		if strings.Contains(s, scopeSeparator) {
			return nil, &errors.InvalidScopeError{Scopes: scopes, Reason: fmt.Sprintf("scope %q contains a space", s)}
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out, nil
}
