// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package wstrust provides a client for communicating with a WS-Trust (https://en.wikipedia.org/wiki/WS-Trust)
endpoint for the purposes of obtaining a SAML assertion on behalf of the signed in Windows user.

The assertion is requested from the federation service's windowstransport endpoint, which authenticates
the caller with an SPNEGO (Kerberos) ticket carried in the Authorization header.
*/
package wstrust

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/authority"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/internal/comm"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/internal/grant"
	"github.com/AzureAD/msal-iwa-go/apps/internal/oauth/ops/wstrust/defs"
	"github.com/google/uuid"
)

const windowsTransportPath = "/adfs/services/trust/13/windowstransport"

type soapCaller interface {
	SOAPCall(ctx context.Context, endpoint, action string, headers http.Header, qv url.Values, body string, resp interface{}, editors ...comm.RequestEditor) error
}

// Negotiator adds SPNEGO credentials for the current Windows user to a request.
type Negotiator interface {
	Negotiate(ctx context.Context, req *http.Request) error
}

// NegotiateError is returned when the Negotiator could not produce credentials.
type NegotiateError struct {
	Err error
}

func (e *NegotiateError) Error() string {
	return fmt.Sprintf("could not negotiate windows credentials: %s", e.Err)
}

func (e *NegotiateError) Unwrap() error {
	return e.Err
}

// SamlTokenInfo provides SAML information that is used to generate a SAML token.
type SamlTokenInfo struct {
	AssertionType string // grant.SAMLV1 or grant.SAMLV2
	Assertion     string
}

// Client represents the REST calls to get tokens from token generator backends.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm       soapCaller
	Negotiator Negotiator
}

// Endpoint returns the windowstransport endpoint to request an assertion from. A non-empty
// override is used as is; otherwise the endpoint is derived from the federation service host
// named by the user realm.
func Endpoint(realm authority.UserRealm, override string) (string, error) {
	if override != "" {
		u, err := url.Parse(override)
		if err != nil || u.Scheme != "https" || u.Host == "" {
			return "", fmt.Errorf("WS-Trust endpoint(%s) must be an absolute https URL", override)
		}
		return override, nil
	}

	for _, candidate := range []string{realm.FederationActiveAuthURL, realm.FederationMetadataURL} {
		if candidate == "" {
			continue
		}
		u, err := url.Parse(candidate)
		if err != nil || u.Host == "" {
			continue
		}
		return "https://" + u.Host + windowsTransportPath, nil
	}
	return "", errors.New("user realm does not name a federation service")
}

// SAMLTokenInfo requests a SAML assertion for the signed in Windows user from endpoint.
// cloudAudienceURN is the relying party the assertion is issued for.
func (c Client) SAMLTokenInfo(ctx context.Context, authParams authority.AuthParams, cloudAudienceURN, endpoint string) (SamlTokenInfo, error) {
	if c.Negotiator == nil {
		return SamlTokenInfo{}, &NegotiateError{Err: errors.New("no Negotiator was configured")}
	}

	body, err := buildTokenRequestMessage(cloudAudienceURN, endpoint)
	if err != nil {
		return SamlTokenInfo{}, err
	}

	var negErr error
	negotiate := func(req *http.Request) error {
		if err := c.Negotiator.Negotiate(ctx, req); err != nil {
			negErr = &NegotiateError{Err: err}
			return negErr
		}
		return nil
	}

	resp := defs.SAMLDefinitions{}
	err = c.Comm.SOAPCall(
		ctx,
		endpoint,
		defs.SOAPActionIssue,
		http.Header{"client-request-id": []string{authParams.CorrelationID}},
		nil,
		body,
		&resp,
		negotiate,
	)
	if err != nil {
		if negErr != nil {
			return SamlTokenInfo{}, negErr
		}
		return SamlTokenInfo{}, err
	}

	return samlTokenInfo(resp)
}

func samlTokenInfo(resp defs.SAMLDefinitions) (SamlTokenInfo, error) {
	if f := resp.Body.Fault; f != nil {
		return SamlTokenInfo{}, fmt.Errorf("WS-Trust fault(%s): %s", f.Code.Subcode.Value, strings.TrimSpace(f.Reason.Text))
	}

	for _, tokenResponse := range resp.Body.RequestSecurityTokenResponseCollection.RequestSecurityTokenResponse {
		token := tokenResponse.RequestedSecurityToken
		if token.AssertionRawXML == "" {
			continue
		}

		assertion := strings.TrimSpace(token.AssertionRawXML)
		switch token.Assertion.XMLName.Space {
		case defs.SAMLV1Assertion:
			return SamlTokenInfo{AssertionType: grant.SAMLV1, Assertion: assertion}, nil
		case defs.SAMLV2Assertion:
			return SamlTokenInfo{AssertionType: grant.SAMLV2, Assertion: assertion}, nil
		}
		return SamlTokenInfo{}, fmt.Errorf("couldn't parse SAML assertion, version unknown: %q", token.Assertion.XMLName.Space)
	}
	return SamlTokenInfo{}, errors.New("unable to find a SAML assertion in the WS-Trust response")
}

func buildTokenRequestMessage(cloudAudienceURN, endpoint string) (string, error) {
	envelope := defs.Envelope{
		S:   defs.SOAPNamespace,
		Wsa: defs.AddressingNamespace,
		Wsu: defs.UtilityNamespace,
	}

	envelope.Header.Action.Text = defs.SOAPActionIssue
	envelope.Header.Action.MustUnderstand = "1"
	envelope.Header.MessageID.Text = "urn:uuid:" + messageID()
	envelope.Header.ReplyTo.Address.Text = defs.AnonymousAddress
	envelope.Header.To.Text = endpoint
	envelope.Header.To.MustUnderstand = "1"

	rst := &envelope.Body.RequestSecurityToken
	rst.Wst = defs.TrustNamespace
	rst.AppliesTo.Wsp = defs.PolicyNamespace
	rst.AppliesTo.EndpointReference.Address.Text = cloudAudienceURN
	rst.KeyType.Text = defs.KeyTypeBearer
	rst.RequestType.Text = defs.RequestTypeIssue

	b, err := xml.Marshal(envelope)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// messageID is replaced in tests.
var messageID = func() string {
	return uuid.New().String()
}
