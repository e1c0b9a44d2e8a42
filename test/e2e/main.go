// Command e2e boots the data collection core with its admin server in
// process, registers a self node with an internal metric, and verifies the
// collection loop and the telemetry endpoint end to end.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openwatch/netmon-server/internal/config"
	"github.com/openwatch/netmon-server/internal/dcc"
	"github.com/openwatch/netmon-server/internal/handlers"
	"github.com/openwatch/netmon-server/internal/models"
	"github.com/openwatch/netmon-server/internal/probes"
	"github.com/openwatch/netmon-server/internal/server"
	"github.com/openwatch/netmon-server/internal/targets"
)

const listenPort = 18000

func main() {
	logger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	zap.ReplaceGlobals(logger)

	if err := run(); err != nil {
		zap.S().Fatalw("e2e failed", "error", err)
	}
	zap.S().Info("e2e passed")
}

func run() error {
	cctx := dcc.NewContext()
	cctx.NumCollectors = 2

	internal := probes.NewInternalRegistry()
	internal.Register("Server.Heartbeat", func() (string, error) {
		return "1", nil
	})
	self := targets.NewNode(targets.NodeConfig{
		ID:        1,
		Name:      "e2e-self",
		IPAddress: "127.0.0.1",
		Internal:  internal,
	})
	cctx.Objects.RegisterNode(self)

	item := dcc.NewItem(cctx, 1, "Server.Heartbeat", models.SourceInternal, 1, 30, self)
	self.Add(item)

	core := dcc.Start(cctx)
	defer core.Shutdown()

	srv, err := server.NewServer(
		config.Server{Mode: "dev", HTTPPort: listenPort},
		config.Authentication{},
		func(router *gin.RouterGroup) {
			handlers.RegisterRoutes(router, handlers.New(core))
		},
	)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	go srv.Start(ctx) //nolint:errcheck

	// The 1-second cadence item must have been polled at least once.
	deadline := time.Now().Add(15 * time.Second)
	for item.LastPollTime().IsZero() {
		if time.Now().After(deadline) {
			return fmt.Errorf("item was never polled")
		}
		time.Sleep(200 * time.Millisecond)
	}

	resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/api/v1/stats", listenPort))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	var stats struct {
		QueueAverages map[string]float64 `json:"queueAverages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return err
	}
	if _, ok := stats.QueueAverages[dcc.StatCollectionQueue]; !ok {
		return fmt.Errorf("missing collector queue average in %v", stats.QueueAverages)
	}

	return nil
}
