package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"aerorelay-service/pkg/applejwt"

	"github.com/spf13/cobra"
)

const clientSecretDays = 180

type appleFlags struct {
	teamID   string
	keyID    string
	bundleID string
	keyPath  string
	out      string
}

// signer builds a signer from the flags, falling back to the environment
func (f *appleFlags) signer(tc *toolContext) (*applejwt.Signer, error) {
	cfg := applejwt.Config{
		TeamID:         firstSet(f.teamID, tc.cfg.AppleTeamID),
		KeyID:          firstSet(f.keyID, tc.cfg.AppleKeyID),
		BundleID:       firstSet(f.bundleID, tc.cfg.AppleBundleID),
		PrivateKeyPath: firstSet(f.keyPath, tc.cfg.ApplePrivateKeyPath),
	}
	return applejwt.NewSigner(cfg)
}

func newAppleJWTCmd(tc *toolContext) *cobra.Command {
	flags := &appleFlags{}

	cmd := &cobra.Command{
		Use:   "apple-jwt",
		Short: "Generate and inspect Apple ES256 tokens",
	}
	cmd.PersistentFlags().StringVar(&flags.teamID, "team-id", "", "Apple team id (APPLE_TEAM_ID)")
	cmd.PersistentFlags().StringVar(&flags.keyID, "key-id", "", "key id of the .p8 file (APPLE_KEY_ID)")
	cmd.PersistentFlags().StringVar(&flags.bundleID, "bundle-id", "", "bundle or services id used as sub (APPLE_BUNDLE_ID)")
	cmd.PersistentFlags().StringVar(&flags.keyPath, "key", "", "path to the .p8 private key (APPLE_PRIVATE_KEY_PATH)")
	cmd.PersistentFlags().StringVar(&flags.out, "out", "", "write the token to this file instead of stdout")

	var hours int
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Issue a short-lived client secret",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := flags.signer(tc)
			if err != nil {
				return err
			}
			token, err := signer.ClientSecret(time.Now(), time.Duration(hours)*time.Hour)
			if err != nil {
				return err
			}
			return writeToken(cmd, flags.out, token)
		},
	}
	generate.Flags().IntVar(&hours, "hours", 24, "token lifetime in hours")

	clientSecret := &cobra.Command{
		Use:   "client-secret",
		Short: fmt.Sprintf("Issue a Sign in with Apple client secret valid for %d days", clientSecretDays),
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := flags.signer(tc)
			if err != nil {
				return err
			}
			token, err := signer.ClientSecret(time.Now(), clientSecretDays*24*time.Hour)
			if err != nil {
				return err
			}
			return writeToken(cmd, flags.out, token)
		},
	}

	providerToken := &cobra.Command{
		Use:   "provider-token",
		Short: "Issue an APNs provider token",
		RunE: func(cmd *cobra.Command, args []string) error {
			signer, err := flags.signer(tc)
			if err != nil {
				return err
			}
			token, err := signer.ProviderToken(time.Now())
			if err != nil {
				return err
			}
			return writeToken(cmd, flags.out, token)
		},
	}

	decode := &cobra.Command{
		Use:   "decode <token>",
		Short: "Print the header and claims of a token without verifying it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			decoded, err := applejwt.Decode(args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(decoded)
		},
	}

	cmd.AddCommand(generate, clientSecret, providerToken, decode)
	return cmd
}

func writeToken(cmd *cobra.Command, out, token string) error {
	if out == "" {
		_, err := fmt.Fprintln(cmd.OutOrStdout(), token)
		return err
	}
	if err := os.WriteFile(out, []byte(token+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write token: %w", err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "Token written to %s\n", out)
	return nil
}

func firstSet(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
