// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package storage holds all cached token information for MSAL. This storage can be
// augmented with third-party extensions to provide persistent storage. In that case,
// reads and writes in upper packages will call Marshal() to take the entire in-memory
// representation and write it to storage and Unmarshal() to update the entire in-memory
// storage with what was in the persistent storage.  The persistent storage can only be
// accessed in this way because multiple MSAL clients written in multiple languages can
// access the same storage and must adhere to the same method that was defined
// previously.
package storage

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/accesstokens"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-iwa-go/apps/internal/shared"
)

// TokenResponse mimics a token response that was pulled from the cache. Fields that
// were not found, or an access token that can no longer be used, are left zero.
type TokenResponse struct {
	RefreshToken accesstokens.RefreshToken
	IDToken      IDToken
	AccessToken  AccessToken
	Account      shared.Account
}

// Manager is an in-memory cache of access tokens, accounts and meta data. This data is
// updated on read/write calls. Unmarshal() replaces all data stored here with whatever
// was given to it on each call.
type Manager struct {
	contract   *Contract
	contractMu sync.RWMutex
}

// New is the constructor for Manager.
func New() *Manager {
	return &Manager{contract: NewContract()}
}

const scopeSeparator = " "

func isMatchingScopes(scopesOne []string, scopesTwo string) bool {
	newScopesTwo := strings.Split(scopesTwo, scopeSeparator)
	scopeCounter := 0
	for _, scope := range scopesOne {
		for _, otherScope := range newScopesTwo {
			if strings.EqualFold(scope, otherScope) {
				scopeCounter++
				break
			}
		}
	}
	return scopeCounter == len(scopesOne)
}

// Read reads the tokens cached for authParameters.HomeAccountID. It never fails because
// something is missing; callers inspect the zero fields of the result.
func (m *Manager) Read(ctx context.Context, authParameters authority.AuthParams) (TokenResponse, error) {
	if err := ctx.Err(); err != nil {
		return TokenResponse{}, err
	}

	homeAccountID := authParameters.HomeAccountID
	env := authParameters.AuthorityInfo.Host
	realm := authParameters.AuthorityInfo.Tenant
	clientID := authParameters.ClientID

	m.contractMu.RLock()
	defer m.contractMu.RUnlock()

	tr := TokenResponse{}
	if at, ok := m.readAccessToken(homeAccountID, env, realm, clientID, authParameters.Scopes); ok && at.Validate() == nil {
		tr.AccessToken = at
	}
	tr.IDToken, _ = m.readIDToken(homeAccountID, env, realm, clientID)

	appMetaData, _ := m.readAppMetaData(env, clientID)
	tr.RefreshToken, _ = m.readRefreshToken(homeAccountID, env, appMetaData.FamilyID, clientID)
	tr.Account, _ = m.readAccount(homeAccountID, env, realm)
	return tr, nil
}

// Write writes a token response to the cache and returns the account information the token is stored with.
func (m *Manager) Write(authParameters authority.AuthParams, tokenResponse accesstokens.TokenResponse) (shared.Account, error) {
	homeAccountID := tokenResponse.HomeAccountID()
	if homeAccountID == "" {
		homeAccountID = authParameters.HomeAccountID
	}
	environment := authParameters.AuthorityInfo.Host
	realm := authParameters.AuthorityInfo.Tenant
	clientID := authParameters.ClientID
	target := strings.Join(tokenResponse.GrantedScopes, scopeSeparator)

	cachedAt := time.Now()

	m.contractMu.Lock()
	defer m.contractMu.Unlock()

	account, _ := m.readAccount(homeAccountID, environment, realm)

	if len(tokenResponse.RefreshToken) > 0 {
		refreshToken := accesstokens.NewRefreshToken(homeAccountID, environment, clientID, tokenResponse.RefreshToken, tokenResponse.FamilyID)
		m.contract.RefreshTokens[refreshToken.Key()] = refreshToken
	}

	if len(tokenResponse.AccessToken) > 0 {
		accessToken := NewAccessToken(
			homeAccountID,
			environment,
			realm,
			clientID,
			cachedAt,
			tokenResponse.ExpiresOn.T,
			tokenResponse.ExtExpiresOn.T,
			target,
			tokenResponse.AccessToken,
		)

		// Since we have a valid access token, cache it before moving on.
		if err := accessToken.Validate(); err == nil {
			m.contract.AccessTokens[accessToken.Key()] = accessToken
		}
	}

	idTokenJwt := tokenResponse.IDToken
	if !idTokenJwt.IsZero() {
		idToken := NewIDToken(homeAccountID, environment, realm, clientID, idTokenJwt.RawToken)
		m.contract.IDTokens[idToken.Key()] = idToken

		// Id tokens without a username claim keep the name the account was requested for.
		username := idTokenJwt.Username()
		if username == "" {
			username = authParameters.Username
		}
		if username == "" {
			username = account.PreferredUsername
		}
		account = shared.NewAccount(
			homeAccountID,
			environment,
			realm,
			idTokenJwt.LocalAccountID(),
			authParameters.AuthorityInfo.AuthorityType,
			username,
		)
		account.Name = idTokenJwt.Name
		account.RawClientInfo = tokenResponse.ClientInfo.Raw
		m.contract.Accounts[account.Key()] = account
	}

	appMetaData := NewAppMetaData(tokenResponse.FamilyID, clientID, environment)
	m.contract.AppMetaData[appMetaData.Key()] = appMetaData
	return account, nil
}

func (m *Manager) readAccessToken(homeID, env, realm, clientID string, scopes []string) (AccessToken, bool) {
	// TODO: linear search (over a map no less) is slow for a large number of tokens
	for _, at := range m.contract.AccessTokens {
		if at.HomeAccountID == homeID && strings.EqualFold(at.Realm, realm) && strings.EqualFold(at.ClientID, clientID) && strings.EqualFold(at.Environment, env) {
			if isMatchingScopes(scopes, at.Scopes) {
				return at, true
			}
		}
	}
	return AccessToken{}, false
}

func (m *Manager) readRefreshToken(homeID, env, familyID, clientID string) (accesstokens.RefreshToken, bool) {
	byFamily := func(rt accesstokens.RefreshToken) bool {
		return matchFamilyRefreshToken(rt, homeID, env)
	}
	byClient := func(rt accesstokens.RefreshToken) bool {
		return matchClientIDRefreshToken(rt, homeID, env, clientID)
	}

	// If the application is not part of a family, search by client ID first.
	matchers := []func(rt accesstokens.RefreshToken) bool{byClient, byFamily}
	if familyID != "" {
		matchers = []func(rt accesstokens.RefreshToken) bool{byFamily, byClient}
	}

	for _, matcher := range matchers {
		for _, rt := range m.contract.RefreshTokens {
			if matcher(rt) && rt.Secret != "" {
				return rt, true
			}
		}
	}
	return accesstokens.RefreshToken{}, false
}

func matchFamilyRefreshToken(rt accesstokens.RefreshToken, homeID, env string) bool {
	return rt.HomeAccountID == homeID && strings.EqualFold(rt.Environment, env) && rt.FamilyID != ""
}

func matchClientIDRefreshToken(rt accesstokens.RefreshToken, homeID, env, clientID string) bool {
	return rt.HomeAccountID == homeID && strings.EqualFold(rt.Environment, env) && strings.EqualFold(rt.ClientID, clientID)
}

func (m *Manager) readIDToken(homeID, env, realm, clientID string) (IDToken, bool) {
	for _, idt := range m.contract.IDTokens {
		if idt.HomeAccountID == homeID && strings.EqualFold(idt.Realm, realm) && strings.EqualFold(idt.ClientID, clientID) && strings.EqualFold(idt.Environment, env) {
			return idt, true
		}
	}
	return IDToken{}, false
}

// AllAccounts returns every cached account, ordered by cache key.
func (m *Manager) AllAccounts() []shared.Account {
	m.contractMu.RLock()
	defer m.contractMu.RUnlock()

	keys := make([]string, 0, len(m.contract.Accounts))
	for k := range m.contract.Accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	accounts := make([]shared.Account, 0, len(keys))
	for _, k := range keys {
		accounts = append(accounts, m.contract.Accounts[k])
	}
	return accounts
}

func (m *Manager) readAccount(homeAccountID, env, realm string) (shared.Account, bool) {
	// Accounts is a map only because the storage contract shared with other languages says so.
	// The design is to have a storage.Manager per user, so the number of keys is small.
	for _, acc := range m.contract.Accounts {
		if acc.HomeAccountID == homeAccountID && strings.EqualFold(acc.Environment, env) && strings.EqualFold(acc.Realm, realm) {
			return acc, true
		}
	}
	return shared.Account{}, false
}

func (m *Manager) readAppMetaData(env, clientID string) (AppMetaData, bool) {
	for _, app := range m.contract.AppMetaData {
		if strings.EqualFold(app.Environment, env) && strings.EqualFold(app.ClientID, clientID) {
			return app, true
		}
	}
	return AppMetaData{}, false
}

// update updates the internal cache object. This is for use in tests, other uses are not
// supported.
func (m *Manager) update(cache *Contract) {
	m.contractMu.Lock()
	defer m.contractMu.Unlock()
	cache.fill()
	m.contract = cache
}

// Marshal implements cache.Marshaler.
func (m *Manager) Marshal() ([]byte, error) {
	m.contractMu.RLock()
	defer m.contractMu.RUnlock()
	return json.Marshal(m.contract)
}

// Unmarshal implements cache.Unmarshaler.
func (m *Manager) Unmarshal(b []byte) error {
	contract := NewContract()
	if err := json.Unmarshal(b, contract); err != nil {
		return err
	}
	contract.fill()

	m.contractMu.Lock()
	defer m.contractMu.Unlock()
	m.contract = contract
	return nil
}
