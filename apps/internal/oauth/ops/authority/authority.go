// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authority

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
)

const (
	tokenEndpoint         = "https://%v/%v/oauth2/v2.0/token"
	authorizationEndpoint = "https://%v/%v/oauth2/v2.0/authorize"
	userRealmEndpoint     = "https://%v/common/UserRealm/%v"

	// AAD is the authority type written to cached accounts.
	AAD = "MSSTS"
)

type jsonCaller interface {
	JSONCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, body, resp interface{}) error
}

// Info consists of information about the authority.
type Info struct {
	Host                  string
	CanonicalAuthorityURI string
	AuthorityType         string
	Tenant                string
}

// NewInfoFromAuthorityURI parses an authority such as https://login.microsoftonline.com/contoso.
func NewInfoFromAuthorityURI(authority string) (Info, error) {
	u, err := url.Parse(strings.ToLower(authority))
	if err != nil {
		return Info{}, fmt.Errorf("authority(%s) could not be parsed: %w", authority, err)
	}
	if u.Scheme != "https" {
		return Info{}, fmt.Errorf("authority(%s) did not start with https://", authority)
	}
	if u.Hostname() == "" {
		return Info{}, fmt.Errorf("authority(%s) has no host", authority)
	}

	pathParts := strings.Split(strings.Trim(u.EscapedPath(), "/"), "/")
	if len(pathParts) == 0 || pathParts[0] == "" {
		return Info{}, errors.New(`authority must be an https URL such as "https://login.microsoftonline.com/<your tenant>"`)
	}
	tenant := pathParts[0]

	return Info{
		Host:                  u.Host,
		CanonicalAuthorityURI: fmt.Sprintf("https://%v/%v/", u.Host, tenant),
		AuthorityType:         AAD,
		Tenant:                tenant,
	}, nil
}

// Endpoints consists of the endpoints used to talk to the authority.
type Endpoints struct {
	AuthorizationEndpoint string
	TokenEndpoint         string
}

// Endpoints returns the well known AAD endpoints of the authority.
func (i Info) Endpoints() Endpoints {
	return Endpoints{
		AuthorizationEndpoint: fmt.Sprintf(authorizationEndpoint, i.Host, i.Tenant),
		TokenEndpoint:         fmt.Sprintf(tokenEndpoint, i.Host, i.Tenant),
	}
}

// UserRealmURL is where the realm of username is looked up.
func (i Info) UserRealmURL(username string) string {
	return fmt.Sprintf(userRealmEndpoint, i.Host, url.PathEscape(username))
}

// AuthorizeType represents the type of token flow.
type AuthorizeType int

// These are all the types of token flows.
const (
	ATUnknown AuthorizeType = iota
	ATRefreshToken
	ATWindowsIntegrated
)

// AuthParams represents the parameters used for authorization for token acquisition.
type AuthParams struct {
	AuthorityInfo     Info
	CorrelationID     string
	Endpoints         Endpoints
	ClientID          string
	HomeAccountID     string
	Username          string
	Scopes            []string
	AuthorizationType AuthorizeType
}

// NewAuthParams creates an authorization parameters object.
func NewAuthParams(clientID string, authorityInfo Info) AuthParams {
	return AuthParams{
		ClientID:      clientID,
		AuthorityInfo: authorityInfo,
		Endpoints:     authorityInfo.Endpoints(),
		CorrelationID: uuid.New().String(),
	}
}

// UserRealmAccountType refers to the type of user realm.
type UserRealmAccountType string

// These are the different types of user realms.
const (
	Unknown   UserRealmAccountType = ""
	Federated UserRealmAccountType = "Federated"
	Managed   UserRealmAccountType = "Managed"
)

// UserRealm is used for the Integrated Windows Authentication request to determine user type.
type UserRealm struct {
	AccountType       UserRealmAccountType `json:"account_type"`
	DomainName        string               `json:"domain_name"`
	CloudInstanceName string               `json:"cloud_instance_name"`
	CloudAudienceURN  string               `json:"cloud_audience_urn"`

	// required if accountType is Federated
	FederationProtocol      string `json:"federation_protocol"`
	FederationMetadataURL   string `json:"federation_metadata_url"`
	FederationActiveAuthURL string `json:"federation_active_auth_url"`
}

func (u UserRealm) validate() error {
	switch "" {
	case string(u.AccountType):
		return errors.New("the account type (Federated or Managed) is missing")
	case u.DomainName:
		return errors.New("domain name of user realm is missing")
	case u.CloudInstanceName:
		return errors.New("cloud instance name of user realm is missing")
	case u.CloudAudienceURN:
		return errors.New("cloud Instance URN is missing")
	}

	if u.AccountType == Federated {
		switch "" {
		case u.FederationProtocol:
			return errors.New("federation protocol of user realm is missing")
		case u.FederationMetadataURL:
			return errors.New("federation metadata URL of user realm is missing")
		}
	}
	return nil
}

// Client represents the REST calls to authority backends.
type Client struct {
	// Comm provides the HTTP transport client.
	Comm jsonCaller // *comm.Client
}

// UserRealm looks up the realm of authParams.Username.
func (c Client) UserRealm(ctx context.Context, authParams AuthParams) (UserRealm, error) {
	endpoint := authParams.AuthorityInfo.UserRealmURL(authParams.Username)
	qv := url.Values{
		"api-version": []string{"1.0"},
	}

	resp := UserRealm{}
	err := c.Comm.JSONCall(
		ctx,
		endpoint,
		http.Header{"client-request-id": []string{authParams.CorrelationID}},
		qv,
		nil,
		&resp,
	)
	if err != nil {
		return resp, err
	}

	return resp, resp.validate()
}
