package cli

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"


	"github.com/faucetdb/tollgate/internal/config"
	"github.com/faucetdb/tollgate/internal/service"
	"github.com/faucetdb/tollgate/internal/store"
)

const devJWTSecret = "tollgate-dev-secret-change-me"

// resolveDataDir returns the data directory from --data-dir flag,
// TOLLGATE_DATA_DIR env var, or ~/.tollgate as fallback.
func (a *app) resolveDataDir() string {
	if a.dataDir != "" {
		return a.dataDir
	}
	if envDir := os.Getenv("TOLLGATE_DATA_DIR"); envDir != "" {
		return envDir
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".tollgate")
}

// loadConfig decodes the effective configuration. An unset SQLite DSN
// points at tollgate.db in the data directory.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(a.v)
	if err != nil {
		return nil, err
	}
	if cfg.Database.Driver == store.DriverSQLite && cfg.Database.DSN == "" {
		cfg.Database.DSN = filepath.Join(a.resolveDataDir(), "tollgate.db")
	}
	return cfg, nil
}

func openStore(cfg *config.Config) (*store.Store, error) {
	st, err := store.Open(store.Config{
		Driver:          cfg.Database.Driver,
		DSN:             cfg.Database.DSN,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, fmt.Errorf("open key store: %w", err)
	}
	return st, nil
}

// openKeyService opens the store and loads its keys into a KeyService. The
// caller closes the returned store.
func openKeyService(cfg *config.Config, logger *slog.Logger) (*service.KeyService, *store.Store, error) {
	st, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	keys := service.NewKeyService(st, cfg.Auth.MaxKeyLifetime, logger)
	if _, err := keys.ReloadKeys(cmdCtx()); err != nil {
		st.Close()
		return nil, nil, err
	}
	return keys, st, nil
}

// jwtSecret returns the configured admin token secret, or a fixed
// development secret when none is set.
func jwtSecret(cfg *config.Config, logger *slog.Logger) string {
	if cfg.Auth.JWTSecret != "" {
		return cfg.Auth.JWTSecret
	}
	logger.Warn("auth.jwt_secret not set, using the development secret; set TOLLGATE_AUTH_JWT_SECRET")
	return devJWTSecret
}

// versionString returns a display version string.
func (a *app) versionString() string {
	if a.version == "" || a.version == "dev" {
		return "dev"
	}
	if strings.HasPrefix(a.version, "v") {
		return a.version
	}
	return "v" + a.version
}
