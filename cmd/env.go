package main

import (
	"context"

	"github.com/rotisserie/eris"

	"github.com/sells-group/tam-cli/internal/resilience"
	"github.com/sells-group/tam-cli/internal/store"
	"github.com/sells-group/tam-cli/pkg/activecampaign"
)

func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		dsn := cfg.Store.DatabaseURL
		if dsn == "" {
			dsn = "tam.db"
		}
		return store.NewSQLite(dsn)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

func initCRM() (activecampaign.Client, error) {
	if cfg.ActiveCampaign.BaseURL == "" {
		return nil, eris.New("activecampaign base URL is required (TAM_ACTIVECAMPAIGN_BASE_URL)")
	}
	if cfg.ActiveCampaign.APIKey == "" {
		return nil, eris.New("activecampaign API key is required (TAM_ACTIVECAMPAIGN_API_KEY)")
	}

	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("activecampaign", "get")

	return activecampaign.NewClient(
		cfg.ActiveCampaign.BaseURL,
		cfg.ActiveCampaign.APIKey,
		activecampaign.WithRateLimit(cfg.ActiveCampaign.RateLimit),
		activecampaign.WithPageSize(cfg.ActiveCampaign.PageSize),
		activecampaign.WithRetry(retry),
	), nil
}
