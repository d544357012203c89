package main

import (
	"context"
	"fmt"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/config"
	"github.com/FedeEstrubia/imanager-argentina/internal/infra"
	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	seedCmd.Flags().String("owner", "", "UUID de la cuenta (sub del token)")
	_ = seedCmd.MarkFlagRequired("owner")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Carga el catálogo y la configuración de ejemplo en una cuenta",
	Long: `Inserta los dos equipos de ejemplo y la configuración inicial
(cotización 1250, garantía de 30 días). Los productos que ya existen no se
modifican.`,
	RunE: runSeed,
}

// Fixed ids keep the command idempotent.
var (
	seedProductPro = uuid.MustParse("5b0c1a5e-7d0e-4c53-9d1e-0f6a2c9b1a01")
	seedProduct14  = uuid.MustParse("5b0c1a5e-7d0e-4c53-9d1e-0f6a2c9b1a02")
)

func defaultCatalog() []model.Product {
	return []model.Product{
		{
			ID:              seedProductPro,
			SKU:             "IPH15P-128-NAT",
			Model:           "iPhone 15 Pro",
			Storage:         "128GB",
			Color:           "Natural Titanium",
			Condition:       model.ConditionNew,
			Battery:         100,
			Stock:           5,
			PriceSellUSD:    decimal.NewFromInt(1100),
			PriceTradeInUSD: decimal.NewFromInt(850),
			Notes:           "Sellado en caja",
		},
		{
			ID:              seedProduct14,
			SKU:             "IPH14-256-BLU",
			Model:           "iPhone 14",
			Storage:         "256GB",
			Color:           "Blue",
			Condition:       model.ConditionLikeNew,
			Battery:         92,
			Stock:           2,
			PriceSellUSD:    decimal.NewFromInt(750),
			PriceTradeInUSD: decimal.NewFromInt(550),
			Notes:           "Impecable, sin detalles",
		},
	}
}

func runSeed(cmd *cobra.Command, _ []string) error {
	raw, _ := cmd.Flags().GetString("owner")
	owner, err := uuid.Parse(raw)
	if err != nil || owner == uuid.Nil {
		return fmt.Errorf("owner inválido %q", raw)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	db, err := infra.NewDatabase(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	// The bulk path only overwrites rows of the same owner, so re-running
	// against an existing account refreshes the sample rows in place.
	catalog := defaultCatalog()
	if err := repository.NewProductRepository(db).UpsertMany(ctx, owner, catalog); err != nil {
		return fmt.Errorf("productos: %w", err)
	}

	settings := repository.NewSettingsRepository(db)
	if _, err := settings.Get(ctx, owner); err == nil {
		log.Info().Str("owner", owner.String()).Msg("configuración existente, se conserva")
	} else {
		err = settings.Save(ctx, &model.Settings{
			OwnerID:             owner,
			USDRate:             decimal.NewFromInt(1250),
			DefaultWarrantyDays: 30,
			UpdatedAt:           time.Now(),
		})
		if err != nil {
			return fmt.Errorf("configuración: %w", err)
		}
	}

	log.Info().Str("owner", owner.String()).Int("productos", len(catalog)).Msg("catálogo de ejemplo cargado")
	return nil
}
