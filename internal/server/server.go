package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/a-essam23/go-signal/internal/relay"
	"github.com/a-essam23/go-signal/internal/server/middleware"
	"github.com/a-essam23/go-signal/pkg/config"
	"github.com/a-essam23/go-signal/pkg/state"
	"github.com/a-essam23/go-signal/pkg/state/statemanager"
	"github.com/a-essam23/go-signal/pkg/transport"
	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"
)

var (
	errConnectionCycled = errors.New("connection cycled by new connection")
	errShutdown         = errors.New("graceful shutdown")
	errConnectionClosed = errors.New("connection closed during registration")
)

type App struct {
	logger       *slog.Logger
	stateManager state.Manager
	hub          *transport.Hub
	relay        *relay.Relay
	iceServers   []webrtc.ICEServer
	wg           sync.WaitGroup
	http         *http.Server
	config       *config.Config

	ctx context.Context
}

func NewApp(logger *slog.Logger, rootCtx context.Context, cfg *config.Config) (*App, error) {
	iceServers, err := cfg.ICE.ICEServers()
	if err != nil {
		return nil, fmt.Errorf("ice servers: %w", err)
	}
	rate, err := config.ParseRate(cfg.Relay.RateLimit)
	if err != nil {
		return nil, fmt.Errorf("relay rate limit: %w", err)
	}

	stateManager := statemanager.NewInMemoryManager(logger, statemanager.Options{
		DefaultDisplayName: cfg.Relay.DefaultUsername,
		UniqueDisplayNames: cfg.Relay.UniqueUsernames,
	})
	hub := transport.NewHub(logger)

	app := &App{
		logger:       logger,
		stateManager: stateManager,
		hub:          hub,
		relay: relay.New(logger, stateManager, hub, relay.Options{
			ICEServers: iceServers,
			RateLimit:  rate,
		}),
		iceServers: iceServers,
		config:     cfg,
		ctx:        rootCtx,
	}

	// Create a cycler function that closes over the state manager and hub.
	connCycler := func(ip string) {
		oldest, found := stateManager.FindOldestByIP(ip)
		if found {
			logger.Info("Cycling connection: closing oldest", slog.String("ip", ip), slog.String("connID", oldest.ID.String()))
			hub.Close(oldest.ID, errConnectionCycled)
		}
	}

	mux := http.NewServeMux()
	mux.Handle("GET /ws",
		middleware.Chain(http.HandlerFunc(app.upgradeHandler),
			middleware.RequestMetadataMiddleware(cfg.Server.TrustProxy),
			middleware.NewRequestLogger(app.logger),
			middleware.NewConnectionLimiter(
				logger,
				stateManager.CountByIP,
				connCycler,
				cfg.Server.ConnectionLimit,
			),
		),
	)
	mux.HandleFunc("GET /health", app.healthHandler)
	mux.HandleFunc("GET /stats", app.statsHandler)
	mux.HandleFunc("GET /ice-servers", app.iceServersHandler)

	app.http = &http.Server{Addr: cfg.Server.Address, Handler: mux, BaseContext: func(l net.Listener) context.Context {
		return app.ctx
	}}

	return app, nil
}

// Handler returns the root HTTP handler.
func (a *App) Handler() http.Handler {
	return a.http.Handler
}

func (a *App) Run() error {
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("Server starting", slog.String("addr", a.http.Addr))
		if err := a.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		a.logger.Error("HTTP server failed", slog.Any("error", err))
		return err
	case <-a.ctx.Done():
	}
	return a.Shutdown()
}

func (a *App) upgradeHandler(w http.ResponseWriter, r *http.Request) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	connLogger := a.logger.With(slog.String("remoteAddr", reqMeta.IP))

	wsConn, err := websocket.Accept(w, r, a.acceptOptions())
	if err != nil {
		connLogger.Error("Failed to accept websocket connection", slog.Any("error", err))
		return
	}

	onClose := func(id uuid.UUID, err error) {
		connLogger.Info("Deregistering connection due to closure", slog.String("connID", id.String()))
		a.relay.OnDisconnect(id)
		a.hub.Remove(id)
	}
	// handlers are fixed at construction so a Close racing with registration
	// (connection cycling, shutdown) always runs the close handler.
	conn := transport.NewConnection(
		r.Context(),
		&a.wg,
		wsConn,
		transport.ConnectionConfig(a.config.Transport),
		a.relay.HandleMessage,
		onClose,
		a.logger,
	)
	connLogger = connLogger.With(slog.String("connID", conn.ID().String()))

	// register before acking so the connected message has somewhere to go.
	a.hub.Add(conn)
	if err := a.relay.OnConnect(r.Context(), conn.ID(), reqMeta.IP); err != nil {
		connLogger.Error("Failed to register connection state", slog.Any("error", err))
		conn.Close(err)
		a.hub.Remove(conn.ID())
		return
	}
	// Closed turns true before the close handler runs. If the handler already
	// ran, it found nothing to deregister, so clean up again here.
	if conn.Closed() {
		connLogger.Info("Connection closed during registration")
		conn.Close(errConnectionClosed)
		onClose(conn.ID(), errConnectionClosed)
		return
	}

	connLogger.Info("Connection fully established")
	conn.Run()
	<-conn.Done()
}

func (a *App) acceptOptions() *websocket.AcceptOptions {
	if len(a.config.Server.AllowedOrigins) == 0 {
		return &websocket.AcceptOptions{InsecureSkipVerify: true}
	}
	return &websocket.AcceptOptions{OriginPatterns: a.config.Server.AllowedOrigins}
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Write([]byte("ok"))
}

func (a *App) statsHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, a.stateManager.Stats())
}

func (a *App) iceServersHandler(w http.ResponseWriter, r *http.Request) {
	a.writeJSON(w, map[string]any{"ice_servers": a.iceServers})
}

func (a *App) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		a.logger.Error("Failed to write JSON response", slog.Any("error", err))
	}
}

// graceful shutdown sequence.
func (a *App) Shutdown() error {
	a.logger.Info("Shutting down server...")
	timeout := a.config.Server.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := a.http.Shutdown(shutdownCtx); err != nil {
		return err
	}

	// close all active WebSocket connections.
	a.logger.Info("Closing all active connections...", slog.Int("count", a.hub.Len()))
	a.hub.CloseAll(errShutdown)

	// wait for all connection goroutines to finish their cleanup.
	a.wg.Wait()
	a.logger.Info("Server shut down gracefully.")
	return nil
}
