package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/dabbawala/ordersync/internal/api"
	"github.com/dabbawala/ordersync/internal/bus"
	"github.com/dabbawala/ordersync/internal/config"
	"github.com/dabbawala/ordersync/internal/connection"
	"github.com/dabbawala/ordersync/internal/liveness"
	"github.com/dabbawala/ordersync/internal/model"
	"github.com/dabbawala/ordersync/internal/reconcile"
	"github.com/dabbawala/ordersync/internal/rooms"
	"github.com/dabbawala/ordersync/internal/session"
	"github.com/dabbawala/ordersync/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/agentd.local.yaml", "path to config file")
	flag.Parse()

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))
	slog.SetDefault(logger)

	logger.Info("starting agentd",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	// Load configuration
	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger.Info("configuration loaded",
		"ws_url", cfg.Connection.WSURL,
		"api_url", cfg.API.RestURL,
		"user_id", cfg.Auth.UserID,
		"role", cfg.Auth.Role,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	// Create REST API client
	apiClient := api.NewClient(
		cfg.API.RestURL,
		api.WithBearerToken(cfg.Auth.Token),
		api.WithLogger(logger),
		api.WithTimeout(cfg.API.Timeout),
		api.WithRetries(cfg.API.MaxRetries, time.Second),
	)

	// Connection manager
	mgr := connection.NewManager(connection.ManagerConfig{
		URL:                cfg.Connection.WSURL,
		DialTimeout:        cfg.Connection.DialTimeout,
		WriteTimeout:       cfg.Connection.WriteTimeout,
		PingInterval:       cfg.Connection.PingInterval,
		PingTimeout:        cfg.Connection.PingTimeout,
		MaxAttempts:        cfg.Connection.MaxAttempts,
		ReconnectBaseDelay: cfg.Connection.ReconnectBaseDelay,
		ReconnectMaxDelay:  cfg.Connection.ReconnectMaxDelay,
		FrameBufferSize:    cfg.Connection.FrameBufferSize,
	}, logger)

	// Event fan-out and room membership
	eventBus := bus.New(mgr, logger)
	roomCtrl := rooms.NewController(mgr, logger)

	// Order state reconciler with log-backed alerts and payment collection
	rec := reconcile.NewReconciler(
		reconcile.Config{RemovalDelay: cfg.Sync.RemovalDelay},
		apiClient,
		&logAlerter{logger: logger},
		&restCollector{api: apiClient, logger: logger},
		eventBus,
		logger,
	)
	rec.Register(eventBus)
	defer rec.Close()

	// Session store seeded from config; headless daemons authenticate once.
	store := session.NewStaticStore(cfg.Auth.Credentials())
	bridge := session.NewBridge(store, mgr, roomCtrl, rec, logger)

	monitor := liveness.New(
		liveness.Config{Interval: cfg.Sync.LivenessInterval},
		mgr, roomCtrl, store, logger,
	)

	// Start everything. Order matters: dispatch and membership watchers must
	// be running before the bridge dials.
	if err := eventBus.Start(ctx); err != nil {
		logger.Error("failed to start event bus", "error", err)
		os.Exit(1)
	}
	if err := roomCtrl.Start(ctx); err != nil {
		logger.Error("failed to start rooms controller", "error", err)
		os.Exit(1)
	}
	if err := bridge.Start(ctx); err != nil {
		logger.Error("failed to start session bridge", "error", err)
		os.Exit(1)
	}
	if err := monitor.Start(ctx); err != nil {
		logger.Error("failed to start liveness monitor", "error", err)
		os.Exit(1)
	}

	logger.Info("agentd running")

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		reportStats(gctx, mgr, eventBus, rec, logger)
		return nil
	})

	// Wait for shutdown
	g.Wait()

	logger.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	monitor.Stop(shutdownCtx)
	bridge.Stop(shutdownCtx)
	roomCtrl.Stop(shutdownCtx)
	eventBus.Stop(shutdownCtx)
	mgr.Disconnect()

	logger.Info("agentd stopped")
}

// reportStats periodically logs connection and sync state.
func reportStats(ctx context.Context, mgr connection.Manager, b *bus.Bus, rec *reconcile.Reconciler, logger *slog.Logger) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			cs := mgr.Stats()
			bs := b.Stats()
			logger.Info("sync status",
				"connected", cs.Connected,
				"reconnects", cs.Reconnects,
				"frames", cs.FramesReceived,
				"parse_errors", cs.ParseErrors,
				"dropped", cs.FramesDropped,
				"dispatched", bs.Dispatched,
				"unhandled", bs.Unhandled,
				"active_orders", len(rec.ActiveOrders()),
				"pending_payment", len(rec.PendingPaymentOrders()),
			)
		}
	}
}

// logAlerter surfaces assignment alerts on the log. A UI client would plug
// in sound and vibration here.
type logAlerter struct {
	logger *slog.Logger
}

func (a *logAlerter) AlertAssignment(as reconcile.Assignment) {
	a.logger.Info("NEW ORDER ASSIGNED",
		"order_id", as.OrderID,
		"order_number", as.OrderNumber,
		"customer", as.CustomerName,
		"amount_rupees", as.AmountRupees,
	)
}

func (a *logAlerter) NotifyUnassigned(orderID, orderNumber string) {
	a.logger.Info("order reassigned away",
		"order_id", orderID,
		"order_number", orderNumber,
	)
}

// restCollector completes cash-on-delivery collection headlessly by marking
// the payment completed via REST. The resulting payment_completed event
// flows back through the socket and unblocks the Delivered transition.
type restCollector struct {
	api    *api.Client
	logger *slog.Logger
}

func (c *restCollector) Collect(ctx context.Context, order model.Order) {
	c.logger.Info("collecting cash on delivery",
		"order_id", order.ID,
		"amount_rupees", order.Financials.TotalRupees,
	)
	if err := c.api.UpdatePaymentStatus(ctx, order.ID, model.PaymentCompleted); err != nil {
		c.logger.Error("payment collection failed", "order_id", order.ID, "error", err)
	}
}
