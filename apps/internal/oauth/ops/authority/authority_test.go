// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package authority

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"testing"

	"github.com/kylelemons/godebug/pretty"
)

func TestNewInfoFromAuthorityURI(t *testing.T) {
	tests := []struct {
		desc      string
		authority string
		want      Info
		err       bool
	}{
		{
			desc:      "tenant",
			authority: "https://login.microsoftonline.com/contoso",
			want: Info{
				Host:                  "login.microsoftonline.com",
				CanonicalAuthorityURI: "https://login.microsoftonline.com/contoso/",
				AuthorityType:         AAD,
				Tenant:                "contoso",
			},
		},
		{
			desc:      "mixed case with trailing path",
			authority: "https://Login.MicrosoftOnline.com/Contoso/v2.0/",
			want: Info{
				Host:                  "login.microsoftonline.com",
				CanonicalAuthorityURI: "https://login.microsoftonline.com/contoso/",
				AuthorityType:         AAD,
				Tenant:                "contoso",
			},
		},
		{desc: "Error: http", authority: "http://login.microsoftonline.com/contoso", err: true},
		{desc: "Error: no tenant", authority: "https://login.microsoftonline.com/", err: true},
		{desc: "Error: no host", authority: "https:///contoso", err: true},
		{desc: "Error: unparsable", authority: "https://login.microsoftonline.com/%zz", err: true},
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			got, err := NewInfoFromAuthorityURI(test.authority)
			switch {
			case err == nil && test.err:
				t.Fatal("got err == nil, want err != nil")
			case err != nil && !test.err:
				t.Fatalf("got err == %s, want err == nil", err)
			case err != nil:
				return
			}
			if diff := pretty.Compare(test.want, got); diff != "" {
				t.Errorf("Info: -want/+got:\n%s", diff)
			}
		})
	}
}

func TestEndpoints(t *testing.T) {
	info, err := NewInfoFromAuthorityURI("https://login.microsoftonline.com/contoso")
	if err != nil {
		t.Fatal(err)
	}
	want := Endpoints{
		AuthorizationEndpoint: "https://login.microsoftonline.com/contoso/oauth2/v2.0/authorize",
		TokenEndpoint:         "https://login.microsoftonline.com/contoso/oauth2/v2.0/token",
	}
	if diff := pretty.Compare(want, info.Endpoints()); diff != "" {
		t.Errorf("Endpoints(): -want/+got:\n%s", diff)
	}
	if got := info.UserRealmURL("john doe@contoso.com"); got != "https://login.microsoftonline.com/common/UserRealm/john%20doe@contoso.com" {
		t.Errorf("UserRealmURL() = %s", got)
	}

	params := NewAuthParams("client", info)
	if params.CorrelationID == "" || params.Endpoints != want {
		t.Errorf("NewAuthParams() = %+v", params)
	}
}

type fakeJSONCaller struct {
	reply UserRealm
	err   error

	gotEndpoint string
	gotQV       url.Values
	gotHeaders  http.Header
}

func (f *fakeJSONCaller) JSONCall(ctx context.Context, endpoint string, headers http.Header, qv url.Values, body, resp interface{}) error {
	f.gotEndpoint, f.gotQV, f.gotHeaders = endpoint, qv, headers
	if f.err != nil {
		return f.err
	}
	*resp.(*UserRealm) = f.reply
	return nil
}

func TestUserRealm(t *testing.T) {
	federated := UserRealm{
		AccountType:           Federated,
		DomainName:            "contoso.com",
		CloudInstanceName:     "login.microsoftonline.com",
		CloudAudienceURN:      "urn:federation:MicrosoftOnline",
		FederationProtocol:    "WSTrust",
		FederationMetadataURL: "https://fs.contoso.com/adfs/services/trust/mex",
	}
	managed := UserRealm{
		AccountType:       Managed,
		DomainName:        "contoso.com",
		CloudInstanceName: "login.microsoftonline.com",
		CloudAudienceURN:  "urn:federation:MicrosoftOnline",
	}
	missingProtocol := federated
	missingProtocol.FederationProtocol = ""
	missingURN := managed
	missingURN.CloudAudienceURN = ""

	tests := []struct {
		desc   string
		caller *fakeJSONCaller
		err    bool
	}{
		{desc: "federated", caller: &fakeJSONCaller{reply: federated}},
		{desc: "managed", caller: &fakeJSONCaller{reply: managed}},
		{desc: "Error: transport", caller: &fakeJSONCaller{err: errors.New("connection refused")}, err: true},
		{desc: "Error: no account type", caller: &fakeJSONCaller{reply: UserRealm{DomainName: "contoso.com"}}, err: true},
		{desc: "Error: federated without protocol", caller: &fakeJSONCaller{reply: missingProtocol}, err: true},
		{desc: "Error: no audience", caller: &fakeJSONCaller{reply: missingURN}, err: true},
	}

	info, err := NewInfoFromAuthorityURI("https://login.microsoftonline.com/contoso")
	if err != nil {
		t.Fatal(err)
	}
	for _, test := range tests {
		t.Run(test.desc, func(t *testing.T) {
			params := NewAuthParams("client", info)
			params.Username = "john.doe@contoso.com"

			got, err := Client{Comm: test.caller}.UserRealm(context.Background(), params)
			switch {
			case err == nil && test.err:
				t.Fatal("got err == nil, want err != nil")
			case err != nil && !test.err:
				t.Fatalf("got err == %s, want err == nil", err)
			case err != nil:
				return
			}
			if diff := pretty.Compare(test.caller.reply, got); diff != "" {
				t.Errorf("UserRealm(): -want/+got:\n%s", diff)
			}
			if test.caller.gotEndpoint != "https://login.microsoftonline.com/common/UserRealm/john.doe@contoso.com" {
				t.Errorf("endpoint = %s", test.caller.gotEndpoint)
			}
			if test.caller.gotQV.Get("api-version") != "1.0" {
				t.Errorf("api-version = %q", test.caller.gotQV.Get("api-version"))
			}
			if got := test.caller.gotHeaders["client-request-id"]; len(got) != 1 || got[0] != params.CorrelationID {
				t.Errorf("client-request-id was not sent")
			}
		})
	}
}
