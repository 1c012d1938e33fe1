// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package mock provides a scripted HTTP client and canned identity provider replies for tests.
package mock

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

type response struct {
	body     []byte
	callback func(*http.Request)
	code     int
	headers  http.Header
}

type responseOption interface {
	apply(*response)
}

type respOpt func(*response)

func (fn respOpt) apply(r *response) {
	fn(r)
}

// WithBody sets the HTTP response's body to the specified value.
func WithBody(b []byte) responseOption {
	return respOpt(func(r *response) {
		r.body = b
	})
}

// WithCallback sets a callback to invoke before returning the response.
func WithCallback(callback func(*http.Request)) responseOption {
	return respOpt(func(r *response) {
		r.callback = callback
	})
}

// WithHTTPHeader sets the HTTP headers of the response to the specified value.
func WithHTTPHeader(header http.Header) responseOption {
	return respOpt(func(r *response) {
		r.headers = header
	})
}

// WithHTTPStatusCode sets the HTTP statusCode of response to the specified value.
func WithHTTPStatusCode(statusCode int) responseOption {
	return respOpt(func(r *response) {
		r.code = statusCode
	})
}

// Client is a mock HTTP client that returns a sequence of responses. Use AppendResponse to specify the sequence.
// It is safe for concurrent use.
type Client struct {
	mu    sync.Mutex
	resp  []response
	calls int
}

func NewClient() *Client {
	return &Client{}
}

func (c *Client) AppendResponse(opts ...responseOption) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r := response{code: http.StatusOK, headers: http.Header{}}
	for _, o := range opts {
		o.apply(&r)
	}
	c.resp = append(c.resp, r)
}

func (c *Client) Do(req *http.Request) (*http.Response, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.resp) == 0 {
		panic(fmt.Sprintf(`no response for "%s"`, req.URL.String()))
	}
	c.calls++
	resp := c.resp[0]
	c.resp = c.resp[1:]
	if resp.callback != nil {
		resp.callback(req)
	}
	res := http.Response{Header: resp.headers, StatusCode: resp.code, Request: req}
	res.Body = io.NopCloser(bytes.NewReader(resp.body))
	return &res, nil
}

// Calls is the number of requests the client has answered.
func (c *Client) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// Pending is the number of responses not yet consumed.
func (c *Client) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.resp)
}

// CloseIdleConnections implements the comm.HTTPClient interface
func (*Client) CloseIdleConnections() {}

// GetAccessTokenBody returns a token endpoint reply. Empty optional values are omitted.
func GetAccessTokenBody(accessToken, idToken, refreshToken, clientInfo string, expiresIn int) []byte {
	body := fmt.Sprintf(`{"access_token": "%s","expires_in": %d,"ext_expires_in": %d,"token_type": "Bearer"`, accessToken, expiresIn, expiresIn)
	if clientInfo != "" {
		body += fmt.Sprintf(`, "client_info": "%s"`, clientInfo)
	}
	if idToken != "" {
		body += fmt.Sprintf(`, "id_token": "%s"`, idToken)
	}
	if refreshToken != "" {
		body += fmt.Sprintf(`, "refresh_token": "%s"`, refreshToken)
	}
	body += "}"
	return []byte(body)
}

// GetOAuthErrorBody returns an OAuth error reply, sent with a 400 status.
func GetOAuthErrorBody(code, description string) []byte {
	return []byte(fmt.Sprintf(`{"error": "%s", "error_description": "%s", "error_codes": [50126]}`, code, description))
}

// GetIDToken returns an unsigned id token for username.
func GetIDToken(tenant, oid, username string) string {
	now := time.Now()
	claims := jwt.MapClaims{
		"aud":                "fake-client-id",
		"exp":                now.Add(time.Hour).Unix(),
		"iat":                now.Unix(),
		"iss":                fmt.Sprintf("https://login.microsoftonline.com/%s/v2.0", tenant),
		"name":               username,
		"oid":                oid,
		"preferred_username": username,
		"sub":                oid,
		"tid":                tenant,
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	if err != nil {
		panic(err)
	}
	return s
}

// GetClientInfo returns base64url encoded client_info.
func GetClientInfo(uid, utid string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(fmt.Sprintf(`{"uid":"%s","utid":"%s"}`, uid, utid)))
}

// GetUserRealmBody returns a user realm discovery reply. A non-empty federationHost makes the realm federated.
func GetUserRealmBody(domain, federationHost string) []byte {
	if federationHost == "" {
		return []byte(fmt.Sprintf(`{"ver":"1.0","account_type":"Managed","domain_name":"%s","cloud_instance_name":"microsoftonline.com","cloud_audience_urn":"urn:federation:MicrosoftOnline"}`, domain))
	}
	return []byte(fmt.Sprintf(`{"ver":"1.0","account_type":"Federated","domain_name":"%s","federation_protocol":"WSTrust",`+
		`"federation_metadata_url":"https://%s/adfs/services/trust/mex",`+
		`"federation_active_auth_url":"https://%s/adfs/services/trust/2005/usernamemixed",`+
		`"cloud_instance_name":"microsoftonline.com","cloud_audience_urn":"urn:federation:MicrosoftOnline"}`,
		domain, federationHost, federationHost))
}

// GetWSTrustResponse returns a WS-Trust 1.3 reply carrying a SAML 1.1 assertion.
func GetWSTrustResponse(assertion string) []byte {
	return []byte(`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body>` +
		`<trust:RequestSecurityTokenResponseCollection xmlns:trust="http://docs.oasis-open.org/ws-sx/ws-trust/200512">` +
		`<trust:RequestSecurityTokenResponse><trust:RequestedSecurityToken>` +
		`<saml:Assertion MajorVersion="1" MinorVersion="1" xmlns:saml="urn:oasis:names:tc:SAML:1.0:assertion">` + assertion + `</saml:Assertion>` +
		`</trust:RequestedSecurityToken></trust:RequestSecurityTokenResponse>` +
		`</trust:RequestSecurityTokenResponseCollection></s:Body></s:Envelope>`)
}

// GetWSTrustFault returns a SOAP fault, sent with a 500 status.
func GetWSTrustFault(reason string) []byte {
	return []byte(`<s:Envelope xmlns:s="http://www.w3.org/2003/05/soap-envelope"><s:Body><s:Fault>` +
		`<s:Code><s:Value>s:Sender</s:Value><s:Subcode><s:Value>a:FailedAuthentication</s:Value></s:Subcode></s:Code>` +
		`<s:Reason><s:Text xml:lang="en-US">` + reason + `</s:Text></s:Reason>` +
		`</s:Fault></s:Body></s:Envelope>`)
}
