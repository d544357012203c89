package main

import (
	"fmt"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/config"
	"github.com/FedeEstrubia/imanager-argentina/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.Flags().String("owner", "", "UUID de la cuenta; si falta se genera uno")
	tokenCmd.Flags().String("email", "dev@imanager.local", "Email incluido en el token")
	tokenCmd.Flags().Duration("ttl", 12*time.Hour, "Vigencia del token")
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Emite un token HS256 firmado con JWT_SECRET para pruebas locales",
	RunE:  runToken,
}

func runToken(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET no configurado")
	}

	raw, _ := cmd.Flags().GetString("owner")
	email, _ := cmd.Flags().GetString("email")
	ttl, _ := cmd.Flags().GetDuration("ttl")

	owner := uuid.New()
	if raw != "" {
		if owner, err = uuid.Parse(raw); err != nil {
			return fmt.Errorf("owner inválido %q", raw)
		}
	}

	signed, err := signToken(cfg.JWTSecret, owner, email, ttl, time.Now())
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), signed)
	return nil
}

func signToken(secret string, owner uuid.UUID, email string, ttl time.Duration, now time.Time) (string, error) {
	claims := middleware.JWTClaims{
		Email: email,
		Role:  middleware.RoleAuthenticated,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   owner.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
