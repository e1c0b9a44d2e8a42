package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/fatih/color"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/openwatch/netmon-server/internal/config"
	"github.com/openwatch/netmon-server/internal/dcc"
	"github.com/openwatch/netmon-server/internal/handlers"
	"github.com/openwatch/netmon-server/internal/probes"
	"github.com/openwatch/netmon-server/internal/server"
	"github.com/openwatch/netmon-server/internal/store"
	"github.com/openwatch/netmon-server/internal/store/migrations"
	"github.com/openwatch/netmon-server/internal/targets"
)

var version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:          "netmond",
	Short:        "network monitoring server with the data collection core",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to configuration file")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("netmond failed: %v", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	zap.ReplaceGlobals(logger)
	defer logger.Sync() //nolint:errcheck

	color.Cyan("netmond %s", version)

	db, err := store.NewDB(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	st := store.NewStore(db)
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := migrations.Run(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	cctx := dcc.NewContext()
	cctx.NumCollectors = cfg.Collector.NumCollectors
	cctx.DefaultInterval = cfg.Collector.DefaultInterval
	cctx.DefaultRetentionDays = cfg.Collector.DefaultRetentionDays
	cctx.Schedules = st.Schedules()

	core := dcc.Start(cctx)
	defer core.Shutdown()

	registerSelfNode(cctx, core)
	core.Stats().RegisterQueue("cacheLoader", cctx.CacheQueue, false)

	srv, err := server.NewServer(cfg.Server, cfg.Auth, func(router *gin.RouterGroup) {
		handlers.RegisterRoutes(router, handlers.New(core))
	})
	if err != nil {
		return err
	}
	return srv.Start(ctx)
}

// registerSelfNode attaches the server's own node so internal
// self-monitoring metrics are collectable like any other item. The
// management server is its own SSH proxy fallback.
func registerSelfNode(cctx *dcc.Context, core *dcc.Core) {
	internal := probes.NewInternalRegistry()
	internal.Register("Server.AvgDCIQueuingTime", func() (string, error) {
		return strconv.FormatFloat(core.AvgQueuingTime(), 'f', 3, 64), nil
	})
	internal.Register("Server.AvgDataCollectorQueueSize", func() (string, error) {
		return strconv.FormatFloat(core.Stats().Averages()[dcc.StatCollectionQueue], 'f', 2, 64), nil
	})

	self := targets.NewNode(targets.NodeConfig{
		ID:        1,
		Name:      "netmond-self",
		IPAddress: "127.0.0.1",
		Internal:  internal,
		Script:    &probes.ScriptProbe{Env: cctx.Scripts},
		SNMP:      &probes.SNMPReader{Target: "127.0.0.1", Community: "public"},
	})
	cctx.Objects.RegisterNode(self)
	cctx.ManagementNodeID = self.ID()
}

func newLogger(cfg *config.Configuration) (*zap.Logger, error) {
	var zcfg zap.Config
	if cfg.LogFormat == "json" {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	if level, err := zapcore.ParseLevel(cfg.LogLevel); err == nil {
		zcfg.Level = zap.NewAtomicLevelAt(level)
	}
	return zcfg.Build()
}
