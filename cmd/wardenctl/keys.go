package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func newKeysCmd(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keys",
		Short: "Manage API keys (list, create, revoke, sweep)",
	}

	cmd.AddCommand(
		newKeysListCmd(opts),
		newKeysCreateCmd(opts),
		newKeysRevokeCmd(opts),
		newKeysSweepCmd(opts),
	)
	return cmd
}

func newKeysListCmd(opts *options) *cobra.Command {
	var hideSession bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List credentials in creation order",
		RunE: func(cmd *cobra.Command, args []string) error {
			keys, err := opts.client().ListKeys(cmd.Context(), !hideSession)
			if err != nil {
				return err
			}
			if len(keys) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys found.")
				return nil
			}

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "HASH\tLABEL\tCREATED\tEXPIRES\tSESSION")
			for _, k := range keys {
				expires := "never"
				if k.ExpiresAt != nil {
					expires = k.ExpiresAt.Format("2006-01-02 15:04")
				}
				session := ""
				if k.IsSession {
					session = "yes"
					if k.Current {
						session = "current"
					}
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
					k.TokenHash[:12], k.Label, k.CreatedAt.Format("2006-01-02 15:04"), expires, session)
			}
			return w.Flush()
		},
	}

	cmd.Flags().BoolVar(&hideSession, "hide-session", false, "omit session credentials")
	return cmd
}

func newKeysCreateCmd(opts *options) *cobra.Command {
	var permanent bool

	cmd := &cobra.Command{
		Use:   "create <label>",
		Short: "Create an API key and print it once",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := opts.client().CreateKey(cmd.Context(), args[0], permanent)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), key.Token)
			if key.ExpiresAt != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "expires %s\n", key.ExpiresAt.Format("2006-01-02 15:04"))
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&permanent, "permanent", false, "create a key that never expires")
	return cmd
}

func newKeysRevokeCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "revoke <key-or-hash>",
		Short: "Revoke an API key",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			found, err := opts.client().DeleteKey(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if !found {
				fmt.Fprintln(cmd.OutOrStdout(), "Key not found.")
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Key revoked.")
			return nil
		},
	}
}

func newKeysSweepCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := opts.client().SweepExpiredKeys(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Removed %d expired key(s).\n", result.Removed)
			for _, f := range result.Failures {
				fmt.Fprintf(cmd.ErrOrStderr(), "failed to remove %s: %s\n", f.TokenHash, f.Error)
			}
			return nil
		},
	}
}
