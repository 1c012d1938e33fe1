// Copyright (c) Microsoft Corporation.
// Licensed under the MIT license.

// Command devapps acquires tokens for a domain user against a real tenant. It needs a
// Kerberos ticket for the user, such as one obtained with kinit.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/AzureAD/msal-iwa-go/apps/cache"
	"github.com/AzureAD/msal-iwa-go/apps/cache/file"
	"github.com/AzureAD/msal-iwa-go/apps/iwa"
	"github.com/AzureAD/msal-iwa-go/apps/kerberos"
	"github.com/AzureAD/msal-iwa-go/apps/public"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cachePath  string
	seedPath   string
	krb5Config string
	ccachePath string
	verbose    bool
)

var rootCmd = &cobra.Command{
	Use:          "devapps",
	Short:        "Acquire tokens with Integrated Windows Authentication",
	SilenceUsage: true,
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configPath, "config", "application.properties", "properties file with AUTHORITY, CLIENT_ID, SCOPE and USER_NAME")
	flags.StringVar(&cachePath, "cache", "serialized_cache.json", "token cache file")
	flags.StringVar(&seedPath, "seed", "seed_cache.json", "JSON cache loaded when the cache file is empty; empty to disable")
	flags.StringVar(&krb5Config, "krb5-config", "", "krb5.conf path (default $KRB5_CONFIG or /etc/krb5.conf)")
	flags.StringVar(&ccachePath, "ccache", "", "Kerberos credential cache (default $KRB5CCNAME)")
	flags.BoolVarP(&verbose, "verbose", "v", false, "log every step of the acquisition")

	rootCmd.AddCommand(iwaCmd, secretCmd)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

// newFlow wires a Flow from the command line flags. The returned func releases the Kerberos client.
func newFlow() (*iwa.Flow, func(), error) {
	cfg, err := iwa.LoadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}

	var accessor cache.Accessor
	accessor, err = file.New(cachePath)
	if err != nil {
		return nil, nil, err
	}
	if seedPath != "" {
		seed, err := os.ReadFile(seedPath)
		if err != nil {
			return nil, nil, fmt.Errorf("reading seed: %w", err)
		}
		accessor = cache.Seed(accessor, seed)
	}

	negotiator, err := kerberos.New(kerberos.Options{ConfigPath: krb5Config, CCachePath: ccachePath})
	if err != nil {
		return nil, nil, err
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	client, err := public.New(cfg.ClientID,
		public.WithAuthority(cfg.Authority),
		public.WithCache(accessor),
		public.WithNegotiator(negotiator),
		public.WithLogger(logger),
	)
	if err != nil {
		negotiator.Close()
		return nil, nil, err
	}
	flow, err := iwa.New(cfg, client, iwa.WithLogger(logger))
	if err != nil {
		negotiator.Close()
		return nil, nil, err
	}
	return flow, negotiator.Close, nil
}

var iwaCmd = &cobra.Command{
	Use:   "iwa",
	Short: "Acquire a token twice, the second time from the cache",
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, closer, err := newFlow()
		if err != nil {
			return err
		}
		defer closer()

		for i := 0; i < 2; i++ {
			result, err := flow.Token(cmd.Context())
			if err != nil {
				return err
			}
			printResult(cmd, result)
		}
		return nil
	},
}

var (
	vaultURL   string
	secretName string
)

var secretCmd = &cobra.Command{
	Use:   "secret",
	Short: "Read a Key Vault secret as the configured user",
	RunE: func(cmd *cobra.Command, args []string) error {
		flow, closer, err := newFlow()
		if err != nil {
			return err
		}
		defer closer()

		value, err := getSecret(cmd.Context(), flow, vaultURL, secretName)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", secretName, value)
		return nil
	},
}

func init() {
	secretCmd.Flags().StringVar(&vaultURL, "vault", "", "vault URL, such as https://myvault.vault.azure.net")
	secretCmd.Flags().StringVar(&secretName, "name", "", "secret name")
	_ = secretCmd.MarkFlagRequired("vault")
	_ = secretCmd.MarkFlagRequired("name")
}

func printResult(cmd *cobra.Command, result public.AuthResult) {
	out := cmd.OutOrStdout()
	fmt.Fprintln(out, "Account username: "+result.Account.PreferredUsername)
	fmt.Fprintln(out, "Access token: "+result.AccessToken)
	fmt.Fprintln(out, "Id token: "+result.IDToken.RawToken)
	fmt.Fprintln(out, "Token source: "+result.Metadata.TokenSource.String())
	fmt.Fprintln(out)
}
