// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package defs holds the XML shapes exchanged with a WS-Trust 1.3 endpoint.
package defs

import "encoding/xml"

const (
	TrustNamespace   = "http://docs.oasis-open.org/ws-sx/ws-trust/200512"
	SOAPActionIssue  = TrustNamespace + "/RST/Issue"
	KeyTypeBearer    = TrustNamespace + "/Bearer"
	RequestTypeIssue = TrustNamespace + "/Issue"

	SOAPNamespace       = "http://www.w3.org/2003/05/soap-envelope"
	AddressingNamespace = "http://www.w3.org/2005/08/addressing"
	UtilityNamespace    = "http://docs.oasis-open.org/wss/2004/01/oasis-200401-wss-wssecurity-utility-1.0.xsd"
	PolicyNamespace     = "http://schemas.xmlsoap.org/ws/2004/09/policy"
	AnonymousAddress    = "http://www.w3.org/2005/08/addressing/anonymous"

	SAMLV1Assertion = "urn:oasis:names:tc:SAML:1.0:assertion"
	SAMLV2Assertion = "urn:oasis:names:tc:SAML:2.0:assertion"
)

// Envelope is a WS-Trust 1.3 RequestSecurityToken message. Integrated Windows Authentication
// sends it without a security header; the caller is authenticated by the transport.
type Envelope struct {
	XMLName xml.Name `xml:"s:Envelope"`
	S       string   `xml:"xmlns:s,attr"`
	Wsa     string   `xml:"xmlns:wsa,attr"`
	Wsu     string   `xml:"xmlns:wsu,attr"`
	Header  struct {
		Action struct {
			Text           string `xml:",chardata"`
			MustUnderstand string `xml:"s:mustUnderstand,attr"`
		} `xml:"wsa:Action"`
		MessageID struct {
			Text string `xml:",chardata"`
		} `xml:"wsa:messageID"`
		ReplyTo struct {
			Address struct {
				Text string `xml:",chardata"`
			} `xml:"wsa:Address"`
		} `xml:"wsa:ReplyTo"`
		To struct {
			Text           string `xml:",chardata"`
			MustUnderstand string `xml:"s:mustUnderstand,attr"`
		} `xml:"wsa:To"`
	} `xml:"s:Header"`
	Body struct {
		RequestSecurityToken struct {
			Wst       string `xml:"xmlns:wst,attr"`
			AppliesTo struct {
				Wsp               string `xml:"xmlns:wsp,attr"`
				EndpointReference struct {
					Address struct {
						Text string `xml:",chardata"`
					} `xml:"wsa:Address"`
				} `xml:"wsa:EndpointReference"`
			} `xml:"wsp:AppliesTo"`
			KeyType struct {
				Text string `xml:",chardata"`
			} `xml:"wst:KeyType"`
			RequestType struct {
				Text string `xml:",chardata"`
			} `xml:"wst:RequestType"`
		} `xml:"wst:RequestSecurityToken"`
	} `xml:"s:Body"`
}

// SAMLDefinitions is the RequestSecurityTokenResponseCollection returned by the endpoint,
// reduced to what is needed to pull out the assertion.
type SAMLDefinitions struct {
	XMLName xml.Name `xml:"Envelope"`
	Body    Body     `xml:"Body"`
}

type Body struct {
	Fault                                  *Fault                                 `xml:"Fault"`
	RequestSecurityTokenResponseCollection RequestSecurityTokenResponseCollection `xml:"RequestSecurityTokenResponseCollection"`
}

// Fault is a SOAP 1.2 fault.
type Fault struct {
	Code struct {
		Value   string `xml:"Value"`
		Subcode struct {
			Value string `xml:"Value"`
		} `xml:"Subcode"`
	} `xml:"Code"`
	Reason struct {
		Text string `xml:"Text"`
	} `xml:"Reason"`
}

type RequestSecurityTokenResponseCollection struct {
	RequestSecurityTokenResponse []RequestSecurityTokenResponse `xml:"RequestSecurityTokenResponse"`
}

type RequestSecurityTokenResponse struct {
	RequestedSecurityToken RequestedSecurityToken `xml:"RequestedSecurityToken"`
}

type RequestedSecurityToken struct {
	// AssertionRawXML is the assertion element as sent, which is what the token endpoint wants.
	AssertionRawXML string    `xml:",innerxml"`
	Assertion       Assertion `xml:"Assertion"`
}

// Assertion only records the element name; its namespace carries the SAML version.
type Assertion struct {
	XMLName xml.Name
}
