package cmd

import (
	"fmt"
	"time"

	"github.com/psds-microservice/live-pk-service/internal/config"
	"github.com/psds-microservice/live-pk-service/internal/credential"
	"github.com/spf13/cobra"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Print a media credential (uses MEDIA_APP_ID / MEDIA_APP_SECRET)",
	RunE:  runToken,
}

var (
	tokenChannel string
	tokenUID     int64
	tokenRole    string
	tokenTTL     time.Duration
)

func init() {
	tokenCmd.Flags().StringVar(&tokenChannel, "channel", "", "channel name (required)")
	tokenCmd.Flags().Int64Var(&tokenUID, "uid", 0, "media subject id")
	tokenCmd.Flags().StringVar(&tokenRole, "role", string(credential.RolePublisher), "publisher or subscriber")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "credential lifetime (default MEDIA_TOKEN_TTL)")
	_ = tokenCmd.MarkFlagRequired("channel")
	tokenCmd.AddCommand(tokenVerifyCmd)
}

var tokenVerifyCmd = &cobra.Command{
	Use:   "verify [token]",
	Short: "Check a media credential and print its claims",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenVerify,
}

func runToken(cmd *cobra.Command, args []string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	token, err := signer.Sign(tokenChannel, tokenUID, credential.ParseRole(tokenRole), tokenTTL)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), token)
	return nil
}

func runTokenVerify(cmd *cobra.Command, args []string) error {
	signer, err := loadSigner()
	if err != nil {
		return err
	}
	claims, err := signer.Verify(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "channel: %s\nuid: %s\nrole: %s\n", claims.Channel, claims.Subject, claims.Role)
	if claims.ExpiresAt != nil {
		fmt.Fprintf(out, "expires: %s\n", claims.ExpiresAt.UTC().Format(time.RFC3339))
	}
	return nil
}

func loadSigner() (*credential.Signer, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return credential.NewSigner(cfg.Media.AppID, cfg.Media.AppSecret, cfg.Media.TokenTTL), nil
}
