package main

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/spf13/cobra"

	"building-access-service/internal/config"
)

var (
	tokenSubject     string
	tokenPermissions []string
	tokenTTL         time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a JWT for calling the API",
	Long: `Signs a short-lived JWT with the configured secret. Intended for
operators and integration tests; production callers receive tokens from the
platform's identity service.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configFile)
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if cfg.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret is not configured")
		}

		now := time.Now()
		claims := jwt.MapClaims{
			"sub":         tokenSubject,
			"permissions": tokenPermissions,
			"iat":         now.Unix(),
			"exp":         now.Add(tokenTTL).Unix(),
		}

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
		signed, err := token.SignedString([]byte(cfg.Auth.JWTSecret))
		if err != nil {
			return fmt.Errorf("failed to sign token: %w", err)
		}

		fmt.Println(signed)
		return nil
	},
}

func init() {
	tokenCmd.Flags().StringVar(&tokenSubject, "subject", "operator", "token subject")
	tokenCmd.Flags().StringSliceVar(&tokenPermissions, "permissions", []string{"*"}, "permissions to embed")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", time.Hour, "token lifetime")
	rootCmd.AddCommand(tokenCmd)
}
