package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/rcourtman/pulse-compliance/internal/config"
	"github.com/rcourtman/pulse-compliance/internal/kvstore"
	"github.com/rcourtman/pulse-compliance/internal/license"
	"github.com/rcourtman/pulse-compliance/internal/logging"
	"github.com/rcourtman/pulse-compliance/internal/metrics"
	"github.com/rcourtman/pulse-compliance/internal/notifications"
	"github.com/rcourtman/pulse-compliance/pkg/compliance"
)

type app struct {
	cfg   *config.Config
	store kvstore.Store
	board *notifications.NoticeBoard
	ctrl  *compliance.Controller
}

func newApp(ctx context.Context) (*app, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.Init(logging.Config{
		Format:    cfg.LogFormat,
		Level:     cfg.LogLevel,
		Component: "pulse-compliance",
	})

	clock, err := compliance.LoadZoneClock(cfg.Timezone)
	if err != nil {
		return nil, err
	}

	store, err := kvstore.Open(ctx, cfg.StoreOptions())
	if err != nil {
		return nil, fmt.Errorf("open compliance store: %w", err)
	}

	verifier, err := newVerifier(ctx, cfg)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	board := notifications.NewNoticeBoard(store, cfg.KeyPrefix)
	dispatcher := notifications.NewDispatcher(newSender(cfg), board, nil, cfg.EmailFrom, cfg.EmailTo)

	ctrl, err := compliance.NewController(verifier, store, dispatcher, clock,
		compliance.WithKeyPrefix(cfg.KeyPrefix),
		compliance.WithInProductNotices(cfg.NoticesEnabled),
		compliance.WithEmail(cfg.EmailEnabled),
		compliance.WithNoticeSnooze(cfg.NoticeSnooze),
		compliance.WithObserver(metrics.Recorder{}),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	return &app{cfg: cfg, store: store, board: board, ctrl: ctrl}, nil
}

func (a *app) Close() error {
	return a.store.Close()
}

func newVerifier(ctx context.Context, cfg *config.Config) (compliance.Verifier, error) {
	instanceID, err := license.InstanceID(ctx, cfg.InstanceID)
	if err != nil {
		log.Warn().Err(err).Msg("Could not determine instance ID, site activation will not match")
	}
	keys := license.NewKeySource(cfg.LicenseKey, cfg.LicenseKeyFile)

	if cfg.VerifyURL != "" {
		log.Debug().Str("url", cfg.VerifyURL).Msg("Using remote license verifier")
		return license.NewRemoteVerifier(cfg.VerifyURL, keys, instanceID, cfg.VerifyTimeout)
	}

	publicKey, err := license.LoadPublicKey()
	if err != nil {
		return nil, err
	}
	return license.NewOfflineVerifier(keys, publicKey, instanceID), nil
}

func newSender(cfg *config.Config) notifications.Sender {
	if cfg.PostmarkToken != "" {
		return notifications.NewPostmarkSender(cfg.PostmarkToken)
	}
	return notifications.NewLogSender(nil)
}
