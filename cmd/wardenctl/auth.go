package main

import (
	"fmt"
	"os"

	"github.com/layer-3/warden"
	"github.com/layer-3/warden/core"
	"github.com/spf13/cobra"
)

func newRegisterCmd(opts *options) *cobra.Command {
	var username, invite string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a password account with an invite code",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := opts.readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}
			confirm, err := opts.readSecret(cmd, "Confirm password: ")
			if err != nil {
				return err
			}

			if _, err := opts.client().Register(cmd.Context(), username, password, confirm, invite); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	cmd.Flags().StringVarP(&invite, "invite", "i", "", "invite code")
	return cmd
}

func newLoginCmd(opts *options) *cobra.Command {
	var username string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in with username and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			password, err := opts.readSecret(cmd, "Password: ")
			if err != nil {
				return err
			}

			if _, err := opts.client().Login(cmd.Context(), username, password); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", username)
			return nil
		},
	}

	cmd.Flags().StringVarP(&username, "username", "u", "", "account username")
	_ = cmd.MarkFlagRequired("username")
	return cmd
}

func newWalletCmd(opts *options) *cobra.Command {
	var (
		keystorePath string
		invite       string
		host         string
		chainID      uint64
	)

	cmd := &cobra.Command{
		Use:   "wallet",
		Short: "Sign in with an Ethereum key",
		Long: `Signs a sign-in challenge with a local Ethereum key. The key is read from a
go-ethereum keystore file (--keystore) or from the WARDEN_PRIVATE_KEY environment
variable. Pass --invite to register the address first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := opts.client()

			chain := core.Chain{ID: chainID}
			if !cmd.Flags().Changed("chain-id") {
				served, err := client.Chain(cmd.Context())
				if err != nil {
					return fmt.Errorf("failed to fetch chain: %w", err)
				}
				chain = served
			}

			var (
				signer *warden.KeySigner
				err    error
			)
			switch {
			case keystorePath != "":
				passphrase, perr := opts.readSecret(cmd, "Keystore passphrase: ")
				if perr != nil {
					return perr
				}
				signer, err = warden.LoadKeystoreSigner(keystorePath, passphrase, chain)
			case os.Getenv("WARDEN_PRIVATE_KEY") != "":
				signer, err = warden.NewKeySignerFromHex(os.Getenv("WARDEN_PRIVATE_KEY"), chain)
			default:
				return warden.ErrNoSigner
			}
			if err != nil {
				return err
			}

			h := warden.NewHandshake(signer, client, client.Storage(), chain, host)
			if invite != "" {
				_, err = h.Register(cmd.Context(), invite)
			} else {
				_, err = h.SignIn(cmd.Context())
			}
			if err != nil {
				return fmt.Errorf("wallet sign-in failed at %s: %w", h.State(), err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Signed in as %s\n", signer.Address().Hex())
			return nil
		},
	}

	cmd.Flags().StringVar(&keystorePath, "keystore", "", "go-ethereum keystore file")
	cmd.Flags().StringVar(&invite, "invite", "", "register the address with this invite code")
	cmd.Flags().StringVar(&host, "host", "localhost", "host named in the sign-in message")
	cmd.Flags().Uint64Var(&chainID, "chain-id", 1, "chain to sign in on instead of the one the server announces")
	return cmd
}

func newLogoutCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := opts.client().Logout(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Signed out")
			return nil
		},
	}
}

func newWhoamiCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the account of the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			raw, err := opts.client().Storage().LoadToken(cmd.Context())
			if err != nil {
				return err
			}
			token, err := warden.ParseToken(raw)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "account: %s\n", token.AccountID())
			fmt.Fprintf(out, "session: %s\n", token.SessionID())
			if issued := token.IssuedAt(); !issued.IsZero() {
				fmt.Fprintf(out, "issued:  %s\n", issued.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
}
