package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	featherphysics "x-rigid/backend/internal/adapter/out/physics"
	"x-rigid/backend/internal/game"
	"x-rigid/backend/internal/persistence"
	"x-rigid/backend/internal/physics"
	"x-rigid/backend/internal/telemetry"
	"x-rigid/backend/internal/transport/ws"
	"x-rigid/backend/internal/world"
)

type serveOptions struct {
	configPath string
	httpAddr   string
	grpcAddr   string
	dataDir    string
	tps        int
	seed       int64
	size       int
	bodies     int
	autosave   time.Duration
	telemetry  bool
}

func newServeCmd() *cobra.Command {
	opts := serveOptions{}
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the demo host with physics, websocket sync and gRPC health",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), opts)
		},
	}
	cmd.Flags().StringVar(&opts.configPath, "config", "", "physics config file (yaml)")
	cmd.Flags().StringVar(&opts.httpAddr, "addr", ":8080", "websocket listen address")
	cmd.Flags().StringVar(&opts.grpcAddr, "grpc", ":50051", "gRPC health listen address")
	cmd.Flags().StringVar(&opts.dataDir, "data", ".x-rigid", "data directory")
	cmd.Flags().IntVar(&opts.tps, "tps", 20, "host ticks per second")
	cmd.Flags().Int64Var(&opts.seed, "seed", 1, "terrain and body placement seed")
	cmd.Flags().IntVar(&opts.size, "size", 48, "generated terrain size in blocks")
	cmd.Flags().IntVar(&opts.bodies, "bodies", 12, "number of demo bodies")
	cmd.Flags().DurationVar(&opts.autosave, "autosave", 30*time.Second, "autosave interval")
	cmd.Flags().BoolVar(&opts.telemetry, "telemetry", false, "log body telemetry")
	return cmd
}

func storePath(dataDir string) string {
	return filepath.Join(dataDir, "bodies.sqlite")
}

func runServe(ctx context.Context, opts serveOptions) error {
	logger := log.New(os.Stderr, "", log.LstdFlags|log.Lmicroseconds)

	cfg, err := loadConfig(opts.configPath)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	physics.SetPhysicsConfig(cfg)

	thread, err := game.NewPhysicsThread(game.ThreadConfig{
		Name:           "physics",
		StepRate:       cfg.StepRate,
		MaxBehindSteps: cfg.MaxBehindSteps,
		JoinTimeout:    cfg.JoinTimeout(),
	}, logger)
	if err != nil {
		return err
	}
	defer thread.Destroy()

	manager := world.NewManager(featherphysics.NewFeatherEngine(), thread, logger)
	defer manager.Close()

	syncServer := ws.NewSyncServer(manager, logger)
	defer syncServer.Close()
	manager.SetSyncer(syncServer)

	recorder := telemetry.NewRecorder(500, 5*time.Second, logger)
	recorder.SetEnabled(opts.telemetry)
	recorder.Attach(manager.Events())

	store, err := persistence.OpenStore(storePath(opts.dataDir))
	if err != nil {
		return err
	}
	defer store.Close()

	d := buildDemo(opts.seed, opts.size, opts.bodies, logger)
	bodies, err := d.register(manager)
	if err != nil {
		return err
	}
	restored, err := persistence.Restore(ctx, store, manager, d.overworld)
	if err != nil {
		return err
	}
	logger.Printf("[Server] %d bodies registered, %d restored from %s", len(bodies), restored, opts.dataDir)

	health := newHealthReporter(logger)
	defer health.Shutdown()

	ticker := game.NewGameTicker(opts.tps, logger)
	ticker.SetFaultHandler(health.Fault)
	ticker.RegisterSystem(game.NewPhysicsHookSystem(manager, d.host, ticker))
	ticker.RegisterSystem(game.NewGameMetricsSystem(ticker, thread, 30*time.Second, logger))
	autosave := persistence.NewAutosaveSystem(store, manager, opts.autosave, logger)
	ticker.RegisterSystem(autosave)
	ticker.RegisterSystem(telemetry.NewSystem(recorder))

	grpcServer := grpc.NewServer()
	healthpb.RegisterHealthServer(grpcServer, health.server)
	lis, err := net.Listen("tcp", opts.grpcAddr)
	if err != nil {
		return fmt.Errorf("grpc listen: %w", err)
	}
	go func() {
		if err := grpcServer.Serve(lis); err != nil {
			logger.Printf("[Server] grpc: %v", err)
		}
	}()
	defer grpcServer.GracefulStop()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", syncServer.HandleWS)
	httpServer := &http.Server{Addr: opts.httpAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Printf("[Server] http: %v", err)
		}
	}()

	if err := ticker.Start(); err != nil {
		return err
	}
	logger.Printf("[Server] websocket on %s/ws, gRPC health on %s", opts.httpAddr, opts.grpcAddr)

	sigCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()
	select {
	case <-sigCtx.Done():
		logger.Printf("[Server] shutting down")
	case <-ticker.Done():
	}
	ticker.Stop()
	<-ticker.Done()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)

	if err := autosave.Flush(); err != nil {
		logger.Printf("[Server] final save: %v", err)
	}
	now := time.Now().UTC()
	snapPath := filepath.Join(opts.dataDir, "snapshots", now.Format("20060102-150405")+".zst")
	snap := persistence.NewSnapshot(persistence.Capture(manager.AllBodies(), now), now)
	if err := persistence.WriteSnapshot(snapPath, snap); err != nil {
		logger.Printf("[Server] snapshot: %v", err)
	} else {
		logger.Printf("[Server] snapshot written to %s", snapPath)
	}

	return ticker.Err()
}
