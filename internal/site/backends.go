package site

import (
	"context"
	"fmt"
	"time"

	"github.com/markeidelman/clinicweb/config"
	"github.com/markeidelman/clinicweb/internal/rebuild"
	"github.com/markeidelman/clinicweb/internal/sanity"
	"github.com/markeidelman/clinicweb/pantry/cache"
	"github.com/markeidelman/clinicweb/pantry/retry"
	"github.com/markeidelman/clinicweb/pantry/webhook"
	"go.uber.org/zap"
)

// Backends are the long-lived clients the handlers share.
type Backends struct {
	Cache   cache.Cache
	CMS     *sanity.Client
	Rebuild *rebuild.Dispatcher
	Images  sanity.ImageURLs
}

// Connect opens the content cache (Redis when configured, memory otherwise)
// and builds the CMS client and rebuild dispatcher.
func Connect(ctx context.Context, core *config.CoreConfig, cfg Config, logger *zap.Logger) (*Backends, error) {
	var (
		c   cache.Cache
		err error
	)
	if cfg.RedisAddr != "" {
		timeout := 5 * time.Second
		if core != nil && core.BackendConnectTimeout > 0 {
			timeout = core.BackendConnectTimeout
		}
		c, err = cache.NewRedis(ctx, cache.RedisConfig{
			Address:     cfg.RedisAddr,
			Password:    cfg.RedisPassword,
			DB:          cfg.RedisDB,
			KeyPrefix:   "clinicweb:content:",
			DialTimeout: timeout,
		})
		if err != nil {
			return nil, fmt.Errorf("connect redis: %w", err)
		}
		logger.Info("content cache: redis", zap.String("addr", cfg.RedisAddr))
	} else {
		c = cache.NewMemory(time.Minute)
		logger.Info("content cache: memory")
	}

	cms, err := sanity.New(sanity.Config{
		ProjectID:  cfg.SanityProjectID,
		Dataset:    cfg.SanityDataset,
		APIVersion: cfg.SanityAPIVersion,
		Token:      cfg.SanityToken,
		Cache:      c,
		CacheTTL:   cfg.ContentCacheTTL,
		Logger:     logger,
	})
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	sender := webhook.NewSender(webhook.SenderConfig{
		Timeout: 10 * time.Second,
		Retry: retry.Config{
			MaxAttempts:  3,
			InitialDelay: 500 * time.Millisecond,
			MaxDelay:     5 * time.Second,
			Multiplier:   2,
			Jitter:       0.1,
		},
	})
	dispatcher := rebuild.New(rebuild.Config{
		Hooks:   cfg.DeployHooks,
		Timeout: cfg.RebuildTimeout,
		Sender:  sender,
		Logger:  logger.With(zap.String("component", "rebuild")),
	})
	if len(cfg.DeployHooks) == 0 {
		logger.Warn("no deploy hooks configured; content webhooks will not trigger rebuilds")
	}

	return &Backends{
		Cache:   c,
		CMS:     cms,
		Rebuild: dispatcher,
		Images:  sanity.ImageURLs{ProjectID: cfg.SanityProjectID, Dataset: cfg.SanityDataset},
	}, nil
}

// Close releases the cache connection.
func (b *Backends) Close() error {
	if b == nil || b.Cache == nil {
		return nil
	}
	return b.Cache.Close()
}
