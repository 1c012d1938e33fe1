// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package accesstokens

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	internalTime "github.com/AzureAD/msal-iwa-go/apps/internal/json/types/time"
	"github.com/AzureAD/msal-iwa-go/apps/internal/shared"
	"github.com/golang-jwt/jwt/v5"
)

// IDToken consists of all the information used to validate a user.
// https://docs.microsoft.com/azure/active-directory/develop/id-tokens .
type IDToken struct {
	PreferredUsername string
	Name              string
	Oid               string
	TenantID          string
	Subject           string
	UPN               string
	Email             string
	Issuer            string
	ExpirationTime    time.Time
	RawToken          string
}

// idTokenClaims is the payload of an id token as it is sent on the wire.
type idTokenClaims struct {
	jwt.RegisteredClaims

	PreferredUsername string `json:"preferred_username,omitempty"`
	Name              string `json:"name,omitempty"`
	Oid               string `json:"oid,omitempty"`
	TenantID          string `json:"tid,omitempty"`
	UPN               string `json:"upn,omitempty"`
	Email             string `json:"email,omitempty"`
}

// NewIDToken reads the claims of an ID token. The signature is not verified.
func NewIDToken(raw string) (IDToken, error) {
	claims := &idTokenClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return IDToken{}, fmt.Errorf("id token returned from server is invalid: %w", err)
	}

	idToken := IDToken{
		PreferredUsername: claims.PreferredUsername,
		Name:              claims.Name,
		Oid:               claims.Oid,
		TenantID:          claims.TenantID,
		Subject:           claims.Subject,
		UPN:               claims.UPN,
		Email:             claims.Email,
		Issuer:            claims.Issuer,
		RawToken:          raw,
	}
	if claims.ExpiresAt != nil {
		idToken.ExpirationTime = claims.ExpiresAt.Time
	}
	return idToken, nil
}

// UnmarshalJSON implements json.Unmarshaler.
func (i *IDToken) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("id_token is not a string: %w", err)
	}
	if raw == "" {
		*i = IDToken{}
		return nil
	}
	tok, err := NewIDToken(raw)
	if err != nil {
		return err
	}
	*i = tok
	return nil
}

// IsZero indicates if the IDToken is the zero value.
func (i IDToken) IsZero() bool {
	return i == IDToken{}
}

// LocalAccountID extracts an account's local account ID from an ID token.
func (i IDToken) LocalAccountID() string {
	if i.Oid != "" {
		return i.Oid
	}
	return i.Subject
}

// Username is the name the user signed in with.
func (i IDToken) Username() string {
	switch {
	case i.PreferredUsername != "":
		return i.PreferredUsername
	case i.UPN != "":
		return i.UPN
	}
	return i.Email
}

// ClientInfo is used to create a Home Account ID for an account.
type ClientInfo struct {
	UID  string `json:"uid"`
	UTID string `json:"utid"`

	Raw string `json:"-"`
}

// UnmarshalJSON implements json.Unmarshaler. client_info is base64url encoded JSON.
func (c *ClientInfo) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("client_info is not a string: %w", err)
	}
	if raw == "" {
		*c = ClientInfo{}
		return nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return fmt.Errorf("client_info could not be base64 decoded: %w", err)
	}
	type plain ClientInfo
	p := plain{}
	if err := json.Unmarshal(decoded, &p); err != nil {
		return fmt.Errorf("client_info could not be decoded: %w", err)
	}
	*c = ClientInfo(p)
	c.Raw = raw
	return nil
}

// HomeAccountID is the home account ID for the account client info describes.
func (c ClientInfo) HomeAccountID() string {
	if c.UID == "" || c.UTID == "" {
		return ""
	}
	return fmt.Sprintf("%s.%s", c.UID, c.UTID)
}

// Scopes is the space separated "scope" field of a token response.
type Scopes []string

// UnmarshalJSON implements json.Unmarshaler.
func (s *Scopes) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return fmt.Errorf("scope is not a string: %w", err)
	}
	*s = strings.Fields(strings.ToLower(raw))
	return nil
}

// TokenResponse is the information that is returned from a token endpoint during a token acquisition flow.
type TokenResponse struct {
	AccessToken   string                    `json:"access_token"`
	RefreshToken  string                    `json:"refresh_token"`
	IDToken       IDToken                   `json:"id_token"`
	FamilyID      string                    `json:"foci"`
	GrantedScopes Scopes                    `json:"scope"`
	ExpiresOn     internalTime.DurationTime `json:"expires_in"`
	ExtExpiresOn  internalTime.DurationTime `json:"ext_expires_in"`
	ClientInfo    ClientInfo                `json:"client_info"`
}

// Validate validates the TokenResponse has basic valid values.
func (tr TokenResponse) Validate() error {
	if tr.AccessToken == "" {
		return errors.New("response is missing access_token")
	}
	if tr.ExpiresOn.T.IsZero() {
		return errors.New("response is missing expires_in")
	}
	return nil
}

// HomeAccountID returns the home account ID of the signed in user. Responses without
// client_info fall back to the oid and tid claims of the ID token.
func (tr TokenResponse) HomeAccountID() string {
	if id := tr.ClientInfo.HomeAccountID(); id != "" {
		return id
	}
	if tr.IDToken.Oid != "" && tr.IDToken.TenantID != "" {
		return tr.IDToken.Oid + "." + tr.IDToken.TenantID
	}
	return ""
}

// RefreshToken is the JSON representation of a MSAL refresh token for encoding to storage.
type RefreshToken struct {
	HomeAccountID  string `json:"home_account_id,omitempty"`
	Environment    string `json:"environment,omitempty"`
	CredentialType string `json:"credential_type,omitempty"`
	ClientID       string `json:"client_id,omitempty"`
	FamilyID       string `json:"family_id,omitempty"`
	Secret         string `json:"secret,omitempty"`
	Realm          string `json:"realm,omitempty"`
	Target         string `json:"target,omitempty"`
}

// NewRefreshToken is the constructor for RefreshToken.
func NewRefreshToken(homeID, env, clientID, refreshToken, familyID string) RefreshToken {
	return RefreshToken{
		HomeAccountID:  homeID,
		Environment:    env,
		CredentialType: "RefreshToken",
		ClientID:       clientID,
		FamilyID:       familyID,
		Secret:         refreshToken,
	}
}

// Key outputs the key that can be used to uniquely look up this entry in a map.
func (rt RefreshToken) Key() string {
	var fourth = rt.FamilyID
	if fourth == "" {
		fourth = rt.ClientID
	}

	return strings.ToLower(strings.Join(
		[]string{rt.HomeAccountID, rt.Environment, rt.CredentialType, fourth},
		shared.CacheKeySeparator,
	))
}

func (rt RefreshToken) GetSecret() string {
	return rt.Secret
}
