// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Package grant holds types of grants issued by authorization services.
package grant

const (
	RefreshToken = "refresh_token"
	SAMLV1       = "urn:ietf:params:oauth:grant-type:saml1_1-bearer"
	SAMLV2       = "urn:ietf:params:oauth:grant-type:saml2-bearer"
)
