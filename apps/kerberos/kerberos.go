// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

/*
Package kerberos provides a Negotiator for Integrated Windows Authentication that uses the
Kerberos tickets of the signed in user.

Tickets are read from the user's credential cache, the one "kinit" or a domain join writes,
and exchanged for a service ticket for the federation service. No password is ever handled.

	negotiator, err := kerberos.New(kerberos.Options{})
	if err != nil {
		// TODO: handle error
	}
	client, err := public.New(clientID, public.WithNegotiator(negotiator))
*/
package kerberos

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"strings"
	"sync"

	"github.com/jcmturner/gokrb5/v8/client"
	"github.com/jcmturner/gokrb5/v8/config"
	"github.com/jcmturner/gokrb5/v8/credentials"
	"github.com/jcmturner/gokrb5/v8/spnego"
)

const (
	defaultConfigPath = "/etc/krb5.conf"
	ccachePrefix      = "FILE:"
)

// Options configures a Negotiator. The zero value follows the MIT Kerberos defaults.
type Options struct {
	// ConfigPath is the krb5.conf to use. Defaults to $KRB5_CONFIG, then /etc/krb5.conf.
	ConfigPath string
	// CCachePath is the credential cache to read tickets from. Defaults to $KRB5CCNAME,
	// then /tmp/krb5cc_<uid>. Only file caches are supported.
	CCachePath string
	// SPN is the service principal of the federation service. Defaults to HTTP/<host> of
	// the request being negotiated.
	SPN string
}

func (o Options) configPath() string {
	if o.ConfigPath != "" {
		return o.ConfigPath
	}
	if p := os.Getenv("KRB5_CONFIG"); p != "" {
		return p
	}
	return defaultConfigPath
}

func (o Options) ccachePath() (string, error) {
	p := o.CCachePath
	if p == "" {
		p = os.Getenv("KRB5CCNAME")
	}
	if p == "" {
		return fmt.Sprintf("/tmp/krb5cc_%d", os.Getuid()), nil
	}
	if i := strings.Index(p, ":"); i > 0 && !strings.HasPrefix(p, ccachePrefix) {
		return "", fmt.Errorf("credential cache %q is not a file cache", p)
	}
	return strings.TrimPrefix(p, ccachePrefix), nil
}

// spn returns the service principal for requests to host.
func (o Options) spn(host string) string {
	if o.SPN != "" {
		return o.SPN
	}
	if h, _, err := net.SplitHostPort(host); err == nil {
		host = h
	}
	return "HTTP/" + strings.ToLower(host)
}

// Negotiator adds SPNEGO Authorization headers to requests. It is safe for concurrent use.
// The Kerberos client is created on first use, so a Negotiator can be built on hosts
// without Kerberos configuration.
type Negotiator struct {
	opts Options

	mu     sync.Mutex
	client *client.Client
}

// New creates a Negotiator.
func New(opts Options) (*Negotiator, error) {
	if _, err := opts.ccachePath(); err != nil {
		return nil, err
	}
	return &Negotiator{opts: opts}, nil
}

// these are vars so tests can replace them
var (
	loadClient = func(configPath, ccachePath string) (*client.Client, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, fmt.Errorf("loading Kerberos configuration %s: %w", configPath, err)
		}
		ccache, err := credentials.LoadCCache(ccachePath)
		if err != nil {
			return nil, fmt.Errorf("loading credential cache %s: %w", ccachePath, err)
		}
		// Active Directory KDCs don't support FAST.
		cl, err := client.NewFromCCache(ccache, cfg, client.DisablePAFXFAST(true))
		if err != nil {
			return nil, fmt.Errorf("creating Kerberos client: %w", err)
		}
		return cl, nil
	}
	setHeader = spnego.SetSPNEGOHeader
)

// Negotiate implements public.Negotiator.
func (n *Negotiator) Negotiate(ctx context.Context, req *http.Request) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if req.URL == nil || req.URL.Host == "" {
		return errors.New("kerberos: request has no host")
	}
	cl, err := n.kerberosClient()
	if err != nil {
		return err
	}
	if err := setHeader(cl, req, n.opts.spn(req.URL.Host)); err != nil {
		return fmt.Errorf("kerberos: negotiating with %s: %w", req.URL.Host, err)
	}
	return nil
}

func (n *Negotiator) kerberosClient() (*client.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil {
		return n.client, nil
	}
	ccachePath, err := n.opts.ccachePath()
	if err != nil {
		return nil, err
	}
	cl, err := loadClient(n.opts.configPath(), ccachePath)
	if err != nil {
		return nil, fmt.Errorf("kerberos: %w", err)
	}
	n.client = cl
	return cl, nil
}

// Close destroys the Kerberos client and its session tickets.
func (n *Negotiator) Close() {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil {
		n.client.Destroy()
		n.client = nil
	}
}
