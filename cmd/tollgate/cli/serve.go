package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/faucetdb/tollgate/internal/server"
	"github.com/faucetdb/tollgate/internal/service"
	"github.com/faucetdb/tollgate/internal/sweeper"
)

func (a *app) newServeCmd() *cobra.Command {
	var dev bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the tollgate API server",
		Long:  "Start the HTTP server that issues keys on the admin API and checks them at the gate.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runServe(cmd.Context(), dev)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "HTTP listen port")
	cmd.Flags().String("host", "0.0.0.0", "HTTP listen host")
	cmd.Flags().BoolVar(&dev, "dev", false, "Enable development mode (debug logging)")

	a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	a.v.BindPFlag("server.host", cmd.Flags().Lookup("host"))

	return cmd
}

func (a *app) runServe(ctx context.Context, dev bool) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}
	if dev {
		cfg.Logging.Level = "debug"
	}
	logger := cfg.Logging.NewLogger(os.Stderr)

	// 1. Key store and in-memory key set
	keys, st, err := openKeyService(cfg, logger)
	if err != nil {
		return err
	}
	defer st.Close()
	logger.Info("key store initialized", "driver", st.Driver(), "keys", len(keys.ListKeys()))

	// 2. Background purge of expired keys
	sw := sweeper.New(keys, cfg.Sweeper.Interval, logger)
	sw.Start()
	defer sw.Shutdown()

	// 3. Admin tokens
	admin := service.NewAdminAuth(jwtSecret(cfg, logger))

	// 4. HTTP server
	srvCfg := server.Config{
		Host:            cfg.Server.Host,
		Port:            cfg.Server.Port,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		CORSOrigins:     cfg.Server.CORSOrigins,
		RateLimit:       cfg.Server.RateLimit,
		KeyHeader:       cfg.Auth.KeyHeader,
		Version:         a.version,
	}
	srv := server.New(srvCfg, keys, admin, st, logger)

	fmt.Printf("→ tollgate %s\n", a.versionString())
	fmt.Printf("→ Listening on http://%s:%d\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Health:     http://%s:%d/healthz\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ Gate:       http://%s:%d/gate/{key}\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Printf("→ OpenAPI:    http://%s:%d/openapi.json\n", cfg.Server.Host, cfg.Server.Port)
	fmt.Println()

	return srv.ListenAndServe(ctx)
}

// cmdCtx returns a background context for CLI operations.
func cmdCtx() context.Context {
	return context.Background()
}
