package main

import (
	"context"
	"fmt"
	"io"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/mikeyhost/homedash/internal/auth"
	"github.com/mikeyhost/homedash/internal/config"
	"github.com/mikeyhost/homedash/internal/services"
	"github.com/mikeyhost/homedash/pkg/tlsutil"
)

var (
	loadConfig       = config.Load
	readPassword     = term.ReadPassword
	fetchFingerprint = tlsutil.FetchFingerprint
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration commands",
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Show which integrations are configured",
	Long:  `Load the configuration the server would use and list every integration as configured or missing. Secrets are never printed.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		return printConfigCheck(cmd.OutOrStdout(), cfg)
	},
}

func init() {
	configCmd.AddCommand(configCheckCmd)
}

func printConfigCheck(out io.Writer, cfg *config.Config) error {
	fmt.Fprintf(out, "Data dir: %s\n", cfg.DataDir)
	fmt.Fprintf(out, "Listen:   %s\n", cfg.Server.Addr())
	fmt.Fprintf(out, "Login:    %s\n", configuredLabel(cfg.Auth.Password != ""))
	fmt.Fprintln(out)

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVICE\tSTATUS\tURL")
	for _, entry := range services.NewRegistry(cfg).Entries() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", entry.Name, configuredLabel(entry.Configured), entry.URL)
	}
	if err := w.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "RSS feeds:        %d\n", len(cfg.Feeds.RSSURLs))
	fmt.Fprintf(out, "YouTube channels: %d\n", len(cfg.Feeds.YouTubeChannelIDs))
	fmt.Fprintf(out, "Subreddits:       %d\n", len(cfg.Feeds.Subreddits))
	return nil
}

func configuredLabel(ok bool) string {
	if ok {
		return "configured"
	}
	return "missing"
}

var fingerprintCmd = &cobra.Command{
	Use:     "fingerprint <host>",
	Short:   "Print the SHA-256 fingerprint of a server certificate",
	Long:    `Connect to host and print its certificate fingerprint, for pinning a self-signed Proxmox certificate with PROXMOX_FINGERPRINT.`,
	Example: `  homedash fingerprint pve.lan:8006`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		fingerprint, err := fetchFingerprint(context.Background(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), fingerprint)
		return nil
	},
}

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Generate a bcrypt hash for AUTH_PASSWORD",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password := ""
		if len(args) == 1 {
			password = args[0]
		} else {
			var err error
			password, err = promptPassword(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
		}
		if password == "" {
			return fmt.Errorf("password is required")
		}

		hash, err := auth.HashPassword(password)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), hash)
		return nil
	},
}

func promptPassword(prompt io.Writer) (string, error) {
	fmt.Fprint(prompt, "Password: ")
	first, err := readPassword(int(syscall.Stdin))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	fmt.Fprint(prompt, "Confirm password: ")
	second, err := readPassword(int(syscall.Stdin))
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
