package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/FedeEstrubia/imanager-argentina/internal/dto"
	"github.com/FedeEstrubia/imanager-argentina/internal/model"
	"github.com/FedeEstrubia/imanager-argentina/internal/repository"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

const settingsCachePrefix = "settings:"

// SettingsDefaults are applied the first time an account reads its settings.
type SettingsDefaults struct {
	USDRate      decimal.Decimal
	WarrantyDays int
}

type SettingsService interface {
	// Current returns the settings row, possibly from the cache, creating it
	// with defaults when absent.
	Current(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error)
	// Fresh is Current without the cache read. Settlements snapshot the rate
	// through it.
	Fresh(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error)
	Get(ctx context.Context, ownerID uuid.UUID) (*dto.SettingsResponse, error)
	Update(ctx context.Context, ownerID uuid.UUID, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error)
}

type settingsService struct {
	repo     repository.SettingsRepository
	rdb      *redis.Client
	ttl      time.Duration
	defaults SettingsDefaults
	now      func() time.Time
}

// NewSettingsService builds the service. rdb may be nil, in which case every
// read goes to the database.
func NewSettingsService(repo repository.SettingsRepository, rdb *redis.Client, ttl time.Duration, defaults SettingsDefaults) SettingsService {
	return &settingsService{repo: repo, rdb: rdb, ttl: ttl, defaults: defaults, now: time.Now}
}

func (s *settingsService) Current(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if cached := s.fromCache(ctx, ownerID); cached != nil {
		return cached, nil
	}
	return s.load(ctx, ownerID)
}

func (s *settingsService) Fresh(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	return s.load(ctx, ownerID)
}

// load reads the row from the store and refreshes the cache with it.
func (s *settingsService) load(ctx context.Context, ownerID uuid.UUID) (*model.Settings, error) {
	st, err := s.repo.Get(ctx, ownerID)
	if errors.Is(err, repository.ErrNotFound) {
		st = &model.Settings{
			OwnerID:             ownerID,
			USDRate:             s.defaults.USDRate,
			DefaultWarrantyDays: s.defaults.WarrantyDays,
			UpdatedAt:           s.now(),
		}
		if err := s.repo.Save(ctx, st); err != nil {
			return nil, fmt.Errorf("crear configuración inicial: %w", err)
		}
		log.Info().Str("owner_id", ownerID.String()).Msg("settings: created defaults")
	} else if err != nil {
		return nil, fmt.Errorf("leer configuración: %w", err)
	}

	s.toCache(ctx, st)
	return st, nil
}

func (s *settingsService) Get(ctx context.Context, ownerID uuid.UUID) (*dto.SettingsResponse, error) {
	st, err := s.Current(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	return settingsToResponse(st), nil
}

func (s *settingsService) Update(ctx context.Context, ownerID uuid.UUID, req dto.UpdateSettingsRequest) (*dto.SettingsResponse, error) {
	if ownerID == uuid.Nil {
		return nil, ErrUnauthenticated
	}
	if !req.USDRate.IsPositive() {
		return nil, validationError(map[string]string{"usd_rate": "debe ser mayor a 0"})
	}
	if req.DefaultWarrantyDays < 0 {
		return nil, validationError(map[string]string{"default_warranty_days": "no puede ser negativo"})
	}

	st := &model.Settings{
		OwnerID:             ownerID,
		USDRate:             req.USDRate,
		DefaultWarrantyDays: req.DefaultWarrantyDays,
		UpdatedAt:           s.now(),
	}
	if err := s.repo.Save(ctx, st); err != nil {
		return nil, fmt.Errorf("guardar configuración: %w", err)
	}
	// Write through. Settlements read via Fresh, so an entry left stale by a
	// racing Current only reaches GET /settings, and only until the TTL.
	s.toCache(ctx, st)
	return settingsToResponse(st), nil
}

// ── cache helpers ─────────────────────────────────────────────────────────────
// Cache failures are logged and never fail the request.

func (s *settingsService) fromCache(ctx context.Context, ownerID uuid.UUID) *model.Settings {
	if s.rdb == nil {
		return nil
	}
	raw, err := s.rdb.Get(ctx, settingsCachePrefix+ownerID.String()).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		log.Warn().Err(err).Msg("settings: cache get failed")
		return nil
	}
	var st model.Settings
	if err := json.Unmarshal(raw, &st); err != nil {
		log.Warn().Err(err).Msg("settings: cache decode failed")
		return nil
	}
	return &st
}

func (s *settingsService) toCache(ctx context.Context, st *model.Settings) {
	if s.rdb == nil {
		return
	}
	data, err := json.Marshal(st)
	if err != nil {
		return
	}
	if err := s.rdb.Set(ctx, settingsCachePrefix+st.OwnerID.String(), data, s.ttl).Err(); err != nil {
		log.Warn().Err(err).Msg("settings: cache set failed")
	}
}

func settingsToResponse(st *model.Settings) *dto.SettingsResponse {
	return &dto.SettingsResponse{
		USDRate:             st.USDRate,
		DefaultWarrantyDays: st.DefaultWarrantyDays,
		UpdatedAt:           st.UpdatedAt.Format(time.RFC3339),
	}
}
