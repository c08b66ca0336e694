package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"poshub/internal/core/authz"
	"poshub/internal/core/token"
	"poshub/internal/platform/config"

	"github.com/spf13/cobra"
)

func tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Service token helpers",
	}
	cmd.AddCommand(tokenMintCmd(), tokenScopesCmd())
	return cmd
}

func tokenScopesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "scopes",
		Short: "List the scopes a token may carry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			scopes := authz.Scopes()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(scopes)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SCOPE\tGRANTS")
			for _, s := range scopes {
				fmt.Fprintf(tw, "%s\t%s\n", s.Name, s.Description)
			}
			return tw.Flush()
		},
	}
}

// mint signs with AUTH_PRIVATE_KEY_PEM (or AUTH_HMAC_SECRET for HS*). The token goes to stdout only
func tokenMintCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mint",
		Short: "Mint a signed service token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			sub, _ := cmd.Flags().GetString("sub")
			scopes, _ := cmd.Flags().GetStringSlice("scopes")
			ttl, _ := cmd.Flags().GetDuration("ttl")
			kid, _ := cmd.Flags().GetString("kid")

			for _, s := range scopes {
				if !authz.KnownScope(s) {
					return fmt.Errorf("unknown scope %q", s)
				}
			}

			iss, err := token.FromConfig(config.New()).Minter(kid)
			if err != nil {
				return err
			}
			if ttl > 0 {
				iss.TTL = ttl
			}
			raw, err := iss.Mint(sub, scopes, time.Now())
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), raw)
			return nil
		},
	}
	cmd.Flags().String("sub", "", "token subject (service or till id)")
	cmd.Flags().StringSlice("scopes", []string{authz.ScopeOrdersWrite}, "granted scopes")
	cmd.Flags().Duration("ttl", 0, "lifetime, default AUTH_TOKEN_TTL")
	cmd.Flags().String("kid", "", "key id header")
	_ = cmd.MarkFlagRequired("sub")
	return cmd
}
