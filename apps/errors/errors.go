// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package errors holds the error types returned by token acquisition.

Only one kind of failure is recoverable inside this module: a *CacheMissError returned by
silent acquisition, which tells the caller that the cache holds nothing usable for the
account and scopes and that a credential exchange should be attempted. Every other error
is returned to the caller as is.
*/
package errors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/kylelemons/godebug/pretty"
)

var prettyConf = &pretty.Config{IncludeUnexported: false, SkipZeroFields: true, TrackCycles: true}

type verboser interface {
	Verbose() string
}

// Verbose prints the most verbose error that the error message has.
func Verbose(err error) string {
	build := strings.Builder{}
	for {
		if err == nil {
			break
		}
		if v, ok := err.(verboser); ok {
			build.WriteString(v.Verbose())
		} else {
			build.WriteString(err.Error())
		}
		err = errors.Unwrap(err)
	}
	return build.String()
}

// New is equivalent to errors.New().
func New(text string) error {
	return errors.New(text)
}

// CallErr represents an HTTP call error. Has a Verbose() method that allows getting the
// http.Request and Response objects. Implements error.
type CallErr struct {
	Req *http.Request
	// Resp contains response body
	Resp *http.Response
	Err  error

	// OAuth is the error document returned by the identity provider, when one was decodable.
	OAuth OAuthError
}

// OAuthError is the standard error body of an OAuth 2.0 endpoint.
type OAuthError struct {
	Code        string `json:"error"`
	Description string `json:"error_description"`
	ErrorCodes  []int  `json:"error_codes"`
	SubError    string `json:"suberror"`
}

// Error implements error.Error().
func (e CallErr) Error() string {
	return e.Err.Error()
}

// Unwrap returns the wrapped error.
func (e CallErr) Unwrap() error {
	return e.Err
}

// Verbose prints a versbose error message with the request or response.
func (e CallErr) Verbose() string {
	if e.Resp != nil {
		resp := *e.Resp
		resp.Request = nil // This brings in a bunch of TLS crap we don't need
		resp.TLS = nil     // Same
		e.Resp = &resp
	}
	return fmt.Sprintf("%s:\nRequest:\n%s\nResponse:\n%s", e.Err, prettyConf.Sprint(e.Req), prettyConf.Sprint(e.Resp))
}

// Is reports whether any error in errors chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in errors chain that matches target,
// and if so, sets target to that error value and returns true.
// Otherwise, it returns false.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// MissReason says why the cache could not satisfy a silent request.
type MissReason string

const (
	// NoAccount means the caller had no cached account to look tokens up for.
	NoAccount MissReason = "no_account"
	// NoRefreshToken means no usable access token and no refresh token were cached.
	NoRefreshToken MissReason = "no_refresh_token"
	// RefreshRejected means the identity provider refused the cached refresh token.
	RefreshRejected MissReason = "refresh_rejected"
)

// CacheMissError is returned by silent acquisition when the cache has no usable credential
// for the account and scopes. It is the only error that triggers a credential exchange.
type CacheMissError struct {
	Reason MissReason
	// Err is the underlying cause, set for RefreshRejected.
	Err error
}

func (e *CacheMissError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("no usable cached credential (%s): %s", e.Reason, e.Err)
	}
	return fmt.Sprintf("no usable cached credential (%s)", e.Reason)
}

func (e *CacheMissError) Unwrap() error {
	return e.Err
}

// IsCacheMiss reports whether err is, or wraps, a *CacheMissError.
func IsCacheMiss(err error) bool {
	var cm *CacheMissError
	return errors.As(err, &cm)
}

// Stage names the step of a credential exchange that failed.
type Stage string

const (
	StageUserRealm     Stage = "user_realm"
	StageNegotiate     Stage = "negotiate"
	StageWSTrust       Stage = "wstrust"
	StageTokenEndpoint Stage = "token_endpoint"
)

// CredentialExchangeError is returned when Integrated Windows Authentication fails.
type CredentialExchangeError struct {
	Stage Stage
	Err   error
}

func (e *CredentialExchangeError) Error() string {
	return fmt.Sprintf("integrated windows authentication failed at %s: %s", e.Stage, e.Err)
}

func (e *CredentialExchangeError) Unwrap() error {
	return e.Err
}

// InvalidScopeError is returned when the requested scopes cannot be used.
type InvalidScopeError struct {
	Scopes []string
	Reason string
}

func (e *InvalidScopeError) Error() string {
	return fmt.Sprintf("invalid scopes %q: %s", e.Scopes, e.Reason)
}

// Kind classifies an acquisition error.
type Kind int

const (
	KindNone Kind = iota
	KindCacheMiss
	KindCredentialExchange
	KindUnclassified
)

func (k Kind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindCacheMiss:
		return "cache_miss"
	case KindCredentialExchange:
		return "credential_exchange"
	}
	return "unclassified"
}

// Classify reports the Kind of err. A nil error is KindNone.
func Classify(err error) Kind {
	if err == nil {
		return KindNone
	}
	var cm *CacheMissError
	if errors.As(err, &cm) {
		return KindCacheMiss
	}
	var ce *CredentialExchangeError
	if errors.As(err, &ce) {
		return KindCredentialExchange
	}
	return KindUnclassified
}
