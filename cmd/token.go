package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/frahmantamala/attendance-management/internal/auth"
	"github.com/spf13/cobra"
)

// tokenCmd mints bearer tokens for local development. Production tokens are
// issued by the identity provider that shares security.jwt_secret.
var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development access token",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadRuntime()
		if err != nil {
			return err
		}
		if tokenUserID <= 0 {
			return fmt.Errorf("--user-id is required")
		}

		var perms []string
		for _, p := range strings.Split(tokenPermissions, ",") {
			if p = strings.TrimSpace(p); p != "" {
				perms = append(perms, p)
			}
		}

		tokens := auth.NewJWTTokenGenerator(cfg.Security.JWTSecret, cfg.Security.Issuer, cfg.Security.AccessTokenDuration)
		token, expiresAt, err := tokens.Generate(auth.User{ID: tokenUserID, Email: tokenEmail, Permissions: perms}, tokenTTL)
		if err != nil {
			return err
		}

		fmt.Println(token)
		fmt.Fprintf(cmd.ErrOrStderr(), "expires at %s\n", expiresAt.Format(time.RFC3339))
		return nil
	},
}

var (
	tokenUserID      int64
	tokenEmail       string
	tokenPermissions string
	tokenTTL         time.Duration
)

func init() {
	tokenCmd.Flags().Int64Var(&tokenUserID, "user-id", 0, "User id carried in the token")
	tokenCmd.Flags().StringVar(&tokenEmail, "email", "", "Email carried in the token")
	tokenCmd.Flags().StringVar(&tokenPermissions, "permissions", "", "Comma separated permissions, e.g. admin,reports_view")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 0, "Token lifetime (defaults to security.access_token_duration)")
}
