// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

package iwa

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/magiconair/properties"
)

// Property names read by LoadConfig. Each may be overridden by the environment variable of
// the same name prefixed with IWA_, such as IWA_CLIENT_ID.
const (
	PropertyAuthority = "AUTHORITY"
	PropertyScope     = "SCOPE"
	PropertyClientID  = "CLIENT_ID"
	PropertyUsername  = "USER_NAME"

	envPrefix = "IWA_"
)

// Config is what a Flow acquires tokens for.
type Config struct {
	// Authority is the https URL of the tenant, such as https://login.microsoftonline.com/contoso.
	Authority string
	ClientID  string
	// Scopes are what Flow.Token and Credential request.
	Scopes []string
	// Username is the user Flow.Token and Credential acquire tokens for.
	Username string
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	if c.Authority == "" {
		return errors.New("authority is required")
	}
	u, err := url.Parse(c.Authority)
	if err != nil {
		return fmt.Errorf("authority(%s) could not be parsed: %w", c.Authority, err)
	}
	if u.Scheme != "https" || u.Host == "" {
		return fmt.Errorf("authority(%s) must be an https URL", c.Authority)
	}
	if c.ClientID == "" {
		return errors.New("client ID is required")
	}
	if len(c.Scopes) == 0 {
		return errors.New("at least one scope is required")
	}
	if c.Username == "" {
		return errors.New("username is required")
	}
	return nil
}

// LoadConfig reads a Config from a properties file, then applies IWA_* environment overrides.
// SCOPE may list several scopes separated by spaces or commas. An empty path reads the
// environment only.
func LoadConfig(path string) (Config, error) {
	p := properties.NewProperties()
	if path != "" {
		var err error
		p, err = properties.LoadFile(path, properties.UTF8)
		if err != nil {
			return Config{}, fmt.Errorf("loading configuration: %w", err)
		}
	}

	get := func(key string) string {
		if v, ok := os.LookupEnv(envPrefix + key); ok {
			return strings.TrimSpace(v)
		}
		return strings.TrimSpace(p.GetString(key, ""))
	}

	cfg := Config{
		Authority: get(PropertyAuthority),
		ClientID:  get(PropertyClientID),
		Scopes:    splitScopes(get(PropertyScope)),
		Username:  get(PropertyUsername),
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration %q: %w", path, err)
	}
	return cfg, nil
}

func splitScopes(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t'
	})
}
