package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/layer-3/warden"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

type options struct {
	server      string
	sessionPath string
	passwordIn  io.Reader
	lines       *bufio.Reader
}

// newRootCmd builds the command tree; secrets are prompted for on in
func newRootCmd(in io.Reader) *cobra.Command {
	opts := &options{passwordIn: in}

	cmd := &cobra.Command{
		Use:           "wardenctl",
		Short:         "Sign in to a warden server and manage API keys",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.server, "server", envOr("WARDEN_SERVER", "http://localhost:9000"), "warden server URL")
	cmd.PersistentFlags().StringVar(&opts.sessionPath, "session", envOr("WARDEN_SESSION", defaultSessionPath()), "file holding the session token")

	cmd.AddCommand(
		newRegisterCmd(opts),
		newLoginCmd(opts),
		newWalletCmd(opts),
		newLogoutCmd(opts),
		newWhoamiCmd(opts),
		newKeysCmd(opts),
	)
	return cmd
}

func (o *options) client() *warden.HTTPClient {
	return warden.NewHTTPClient(o.server, warden.WithSessionStorage(warden.NewFileSessionStorage(o.sessionPath)))
}

// readSecret prompts for a secret without echo on a terminal and reads a line otherwise
func (o *options) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if f, ok := o.passwordIn.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		fmt.Fprint(cmd.ErrOrStderr(), prompt)
		secret, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(cmd.ErrOrStderr())
		if err != nil {
			return "", fmt.Errorf("failed to read %s: %w", strings.TrimSuffix(strings.ToLower(prompt), ": "), err)
		}
		return string(secret), nil
	}

	if o.lines == nil {
		o.lines = bufio.NewReader(o.passwordIn)
	}
	line, err := o.lines.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func envOr(name, fallback string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return fallback
}

func defaultSessionPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".warden-session"
	}
	return filepath.Join(dir, "warden", "session")
}
