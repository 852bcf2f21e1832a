package main

import (
	"context"
	"fmt"

	"github.com/google/subcommands"
	"github.com/nasiyabot/backend/internal/config"
	"github.com/nasiyabot/backend/internal/database"
	applog "github.com/nasiyabot/backend/internal/logger"
	"github.com/nasiyabot/backend/internal/services"
	"go.uber.org/zap"
)

var envFile = ".env"

var commands = []subcommands.Command{
	&migrateCmd{},
	&reportCmd{},
	&backupCmd{},
	&verifyCmd{},
}

// env is the shared state every command opens before running.
type env struct {
	cfg    *config.Config
	logger *zap.Logger
	store  *database.Store
}

// openEnv loads configuration and opens the store without migrating it.
func openEnv(ctx context.Context) (*env, error) {
	cfg, err := config.Load(envFile)
	if err != nil {
		return nil, err
	}
	// Commands print their results; keep the log on stderr.
	cfg.Log.Output = "stderr"
	cfg.Log.Format = "console"
	logger, err := applog.New(&cfg.Log)
	if err != nil {
		return nil, err
	}

	dbConfig := database.GetConfig()
	db, err := database.Open(ctx, dbConfig)
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", dbConfig.Driver, err)
	}
	return &env{cfg: cfg, logger: logger, store: database.NewStore(db, dbConfig.Driver)}, nil
}

func (e *env) Close() {
	e.store.Close()
	e.logger.Sync()
}

func (e *env) reports() *services.ReportService {
	phones := services.NewPhoneService(e.cfg.PhoneRegion)
	return services.NewReportService(e.store, phones, e.cfg.Location, e.logger)
}
