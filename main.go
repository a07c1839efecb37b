// Command satmissions starts the satellite missions server.
//
// It supports two modes:
//  1. "server" (default) – runs the HTTP server exposing the REST API, WebSocket, /metrics and an /mcp HTTP endpoint
//  2. "stdio-mcp" – runs an MCP stdio server and spins up an internal HTTP API if none is available
//
// Settings come from a YAML file (-config or MISSIONS_CONFIG), environment
// overrides and finally flags. A .env file is loaded first when present.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/mark3labs/mcp-go/server"
	"github.com/prometheus/client_golang/prometheus"
	"golang.ngrok.com/ngrok"
	ngrokConfig "golang.ngrok.com/ngrok/config"
	"golang.org/x/sync/errgroup"

	"github.com/wricardo/mcp-training/satmissions/api"
	"github.com/wricardo/mcp-training/satmissions/game/config"
	"github.com/wricardo/mcp-training/satmissions/game/service"
	"github.com/wricardo/mcp-training/satmissions/game/session"
	"github.com/wricardo/mcp-training/satmissions/logging"
	"github.com/wricardo/mcp-training/satmissions/metrics"
	"github.com/wricardo/mcp-training/satmissions/transport/mcp"
	"github.com/wricardo/mcp-training/satmissions/transport/websocket"
)

// Version information
const (
	Version = "1.0.0"
	AppName = "Satellite Missions Server"
)

// Flags override the settings file and environment when set explicitly.
var (
	settingsPath = flag.String("config", "", "Settings YAML file (or MISSIONS_CONFIG env var)")
	port         = flag.Int("port", 8080, "HTTP server port")
	host         = flag.String("host", "localhost", "HTTP server host")
	configDir    = flag.String("config-dir", "configs", "Directory containing mission configurations")
	tickInterval = flag.Duration("tick", 0, "Advance every running mission on this wall-clock interval (0 leaves time to tick commands)")
	noPersist    = flag.Bool("no-persist", false, "Keep sessions in memory only")
	debug        = flag.Bool("debug", false, "Enable debug logging")
	version      = flag.Bool("version", false, "Show version information")
	ngrokEnabled = flag.Bool("ngrok", false, "Enable ngrok tunnel")
	ngrokAuth    = flag.String("ngrok-auth", "", "Ngrok auth token (or use NGROK_AUTHTOKEN env var)")
	ngrokDomain  = flag.String("ngrok-domain", "", "Custom ngrok domain (optional)")
)

func init() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [OPTIONS] [MODE]\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "%s v%s\n\n", AppName, Version)
		fmt.Fprintf(os.Stderr, "Available modes:\n")
		fmt.Fprintf(os.Stderr, "  server, http     Run HTTP server with API, WebSocket, metrics and MCP endpoint (default)\n")
		fmt.Fprintf(os.Stderr, "  stdio-mcp        Run MCP stdio server with internal HTTP server\n")
		fmt.Fprintf(os.Stderr, "  mcp-stdio        Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "  mcp              Alias for stdio-mcp\n")
		fmt.Fprintf(os.Stderr, "\nOptions:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  %s                    # Run HTTP server on default port 8080\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s -port 9090 -tick 1s # Real-time clock on port 9090\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "  %s stdio-mcp          # Run MCP stdio server\n", os.Args[0])
	}
}

func main() {
	// Load .env file if it exists
	envErr := godotenv.Load()

	flag.Parse()

	if *version {
		fmt.Printf("%s v%s\n", AppName, Version)
		os.Exit(0)
	}

	settings, err := config.LoadSettings(*settingsPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}
	applyFlags(settings)

	logger := logging.New(logging.Config{
		Level:     settings.Logging.Level,
		Format:    settings.Logging.Format,
		AddSource: *debug,
	})
	logging.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if envErr == nil {
		logger.Info(ctx, "loaded environment variables from .env file")
	} else if !os.IsNotExist(envErr) {
		logger.Warn(ctx, "error loading .env file", logging.Err(envErr))
	}

	mode := "server"
	if args := flag.Args(); len(args) > 0 {
		mode = args[0]
	}
	logger.Info(ctx, "starting", logging.String("app", AppName), logging.String("version", Version), logging.String("mode", mode))

	a, err := newApp(settings, logger, prometheus.DefaultRegisterer)
	if err != nil {
		logger.Error(ctx, "failed to initialize services", logging.Err(err))
		os.Exit(1)
	}

	switch mode {
	case "stdio-mcp", "mcp-stdio", "mcp":
		err = a.runStdioMCP(ctx)
	case "server", "http":
		err = a.runHTTPServer(ctx)
	default:
		err = fmt.Errorf("unknown mode: %s, use 'server' (default) or 'stdio-mcp'", mode)
	}

	if err != nil {
		logger.Error(ctx, "server stopped with error", logging.Err(err))
		os.Exit(1)
	}
	logger.Info(ctx, "server stopped")
}

// applyFlags copies explicitly set flags over the loaded settings
func applyFlags(s *config.Settings) {
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "port":
			s.Server.Port = *port
		case "host":
			s.Server.Host = *host
		case "config-dir":
			s.Missions.ConfigDir = *configDir
		case "tick":
			s.Missions.TickInterval = *tickInterval
		case "no-persist":
			s.Sessions.Persist = !*noPersist
		case "debug":
			if *debug {
				s.Logging.Level = "debug"
			}
		case "ngrok":
			s.Tunnel.Enabled = *ngrokEnabled
		case "ngrok-auth":
			s.Tunnel.Authtoken = *ngrokAuth
		case "ngrok-domain":
			s.Tunnel.Domain = *ngrokDomain
		}
	})
}

// app holds the wired services shared by both modes
type app struct {
	settings *config.Settings
	logger   logging.Logger
	metrics  *metrics.Collector
	sessions *session.Manager
	service  service.GameService
	hub      *websocket.Hub
}

// newApp wires config and session managers, the game service, the websocket
// hub and metrics. Persisted sessions are loaded eagerly.
func newApp(settings *config.Settings, logger logging.Logger, reg prometheus.Registerer) (*app, error) {
	configManager, err := config.NewManager(settings.Missions.ConfigDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create config manager: %w", err)
	}
	if name := settings.Missions.DefaultConfig; name != "" && name != config.DefaultConfigName {
		if err := configManager.SetDefault(name); err != nil {
			return nil, fmt.Errorf("failed to set default config: %w", err)
		}
	}

	collector, err := metrics.NewCollector(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	var sessionManager *session.Manager
	if settings.Sessions.Persist {
		persistence, err := session.NewFilePersistence(settings.Sessions.Dir, configManager)
		if err != nil {
			return nil, fmt.Errorf("failed to create session persistence: %w", err)
		}
		sessionManager = session.NewManagerWithPersistence(persistence)
	} else {
		sessionManager = session.NewManager()
	}
	sessionManager.SetLogger(logger)

	if err := sessionManager.LoadPersistedSessions(); err != nil {
		logger.Warn(context.Background(), "some persisted sessions failed to load", logging.Err(err))
	}

	hub := websocket.NewHub()
	hub.SetLogger(logger)

	gameService := service.NewGameService(sessionManager, configManager,
		service.WithNotifier(hub),
		service.WithMetrics(collector),
		service.WithLogger(logger),
	)
	collector.SetActiveSessions(sessionManager.Count())

	return &app{
		settings: settings,
		logger:   logger,
		metrics:  collector,
		sessions: sessionManager,
		service:  gameService,
		hub:      hub,
	}, nil
}

// handler combines the REST API with an /mcp endpoint proxying to baseURL
func (a *app) handler(baseURL string) http.Handler {
	apiServer := api.NewServer(a.service, a.hub,
		api.WithMetrics(a.metrics),
		api.WithLogger(a.logger),
	)
	mcpClient := mcp.NewClient(baseURL)

	mainRouter := http.NewServeMux()
	mainRouter.Handle("/", apiServer)
	mainRouter.HandleFunc("/mcp", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "Failed to read request", http.StatusBadRequest)
			return
		}
		defer r.Body.Close()

		response := mcpClient.GetMCPServer().HandleMessage(r.Context(), body)
		if response == nil {
			// Notifications have no response
			w.WriteHeader(http.StatusAccepted)
			return
		}

		responseData, err := json.Marshal(response)
		if err != nil {
			http.Error(w, "Failed to marshal response", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(responseData)
	})
	return mainRouter
}

// serve runs the HTTP server on ln together with the hub, the mission clock
// and session maintenance until ctx is cancelled. Sessions are saved on the
// way out.
func (a *app) serve(ctx context.Context, ln net.Listener, handler http.Handler) error {
	g, gctx := errgroup.WithContext(ctx)

	httpServer := &http.Server{
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g.Go(func() error {
		if err := httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), a.settings.Server.GracefulTimeout)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	g.Go(func() error {
		return a.hub.Run(gctx)
	})

	driver := &service.ClockDriver{
		Service:  a.service,
		Interval: a.settings.Missions.TickInterval,
		Logger:   a.logger,
	}
	g.Go(func() error {
		return driver.Run(gctx)
	})

	g.Go(func() error {
		a.maintainSessions(gctx)
		return nil
	})

	if a.settings.Tunnel.Enabled {
		g.Go(func() error {
			a.runTunnel(gctx, handler)
			return nil
		})
	}

	err := g.Wait()
	if saveErr := a.sessions.SaveAllSessions(); saveErr != nil {
		a.logger.Warn(context.Background(), "failed to save sessions on shutdown", logging.Err(saveErr))
	}
	return err
}

// maintainSessions drops expired sessions and prunes sessions whose files
// were deleted, each on its own interval
func (a *app) maintainSessions(ctx context.Context) {
	cleanup := newTicker(a.settings.Sessions.CleanupInterval)
	defer cleanup.Stop()
	prune := newTicker(a.settings.Sessions.SyncInterval)
	defer prune.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-cleanup.C:
			a.cleanupSessions(ctx)
		case <-prune.C:
			if pruned := a.sessions.PruneOrphans(); len(pruned) > 0 {
				a.service.ReleaseSessions(ctx, pruned)
				a.logger.Info(ctx, "filesystem sync pruned orphaned sessions", logging.Int("count", len(pruned)))
			}
		}
	}
}

// cleanupSessions drops sessions idle for longer than the configured max age
func (a *app) cleanupSessions(ctx context.Context) int {
	removed := a.sessions.CleanupExpiredSessions(a.settings.Sessions.MaxAge)
	if len(removed) == 0 {
		return 0
	}
	a.service.ReleaseSessions(ctx, removed)
	a.logger.Info(ctx, "cleaned up expired sessions", logging.Int("count", len(removed)))
	return len(removed)
}

// newTicker returns a ticker for d, or one that never fires when d is not positive
func newTicker(d time.Duration) *time.Ticker {
	if d <= 0 {
		t := time.NewTicker(time.Hour)
		t.Stop()
		return t
	}
	return time.NewTicker(d)
}

// runTunnel serves handler through an ngrok tunnel until ctx is cancelled
func (a *app) runTunnel(ctx context.Context, handler http.Handler) {
	t := a.settings.Tunnel
	if t.Authtoken == "" {
		a.logger.Warn(ctx, "ngrok enabled but no auth token provided (use --ngrok-auth, NGROK_AUTHTOKEN, or NGROK_AUTH_TOKEN env var)")
		return
	}

	a.logger.Info(ctx, "starting ngrok tunnel")

	var tunnel ngrokConfig.Tunnel
	if t.Domain != "" {
		tunnel = ngrokConfig.HTTPEndpoint(ngrokConfig.WithDomain(t.Domain))
		a.logger.Info(ctx, "using custom ngrok domain", logging.String("domain", t.Domain))
	} else {
		tunnel = ngrokConfig.HTTPEndpoint()
	}

	tun, err := ngrok.Listen(ctx, tunnel, ngrok.WithAuthtoken(t.Authtoken))
	if err != nil {
		a.logger.Error(ctx, "failed to start ngrok tunnel", logging.Err(err))
		return
	}

	go func() {
		<-ctx.Done()
		if err := tun.Close(); err != nil {
			a.logger.Warn(context.Background(), "failed to close ngrok tunnel", logging.Err(err))
		}
	}()

	ngrokURL := tun.URL()
	a.logger.Info(ctx, "ngrok tunnel established",
		logging.String("api", ngrokURL+"/api"),
		logging.String("websocket", strings.Replace(ngrokURL, "http", "ws", 1)+"/ws?session=<session_id>"),
		logging.String("mcp", ngrokURL+"/mcp"))

	if err := http.Serve(tun, handler); err != nil && !errors.Is(err, http.ErrServerClosed) && ctx.Err() == nil {
		a.logger.Warn(ctx, "ngrok server error", logging.Err(err))
	}
	a.logger.Info(ctx, "ngrok tunnel closed")
}

// runHTTPServer serves the REST API, WebSocket hub, metrics and /mcp on the
// configured address
func (a *app) runHTTPServer(ctx context.Context) error {
	addr := a.settings.Server.Addr()
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	a.logger.Info(ctx, "HTTP server listening",
		logging.String("addr", addr),
		logging.String("api", "http://"+addr+"/api"),
		logging.String("websocket", "ws://"+addr+"/ws?session=<session_id>"),
		logging.String("mcp", "http://"+addr+"/mcp"),
		logging.String("metrics", "http://"+addr+"/metrics"))

	return a.serve(ctx, ln, a.handler("http://"+addr))
}

// runStdioMCP runs an MCP stdio server. It reuses the external API when one
// answers; otherwise it serves an internal API on a random loopback port.
func (a *app) runStdioMCP(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	baseURL := strings.TrimSuffix(a.settings.Server.ExternalAPI, "/")
	a.logger.Info(ctx, "checking for external API server", logging.String("url", baseURL))

	serveErr := make(chan error, 1)
	if !apiAvailable(baseURL) {
		ln, err := net.Listen("tcp", "127.0.0.1:0")
		if err != nil {
			return fmt.Errorf("failed to get available port: %w", err)
		}
		baseURL = "http://" + ln.Addr().String()
		a.logger.Info(ctx, "no external API server found, starting internal HTTP server", logging.String("url", baseURL))

		go func() {
			serveErr <- a.serve(ctx, ln, a.handler(baseURL))
		}()
	} else {
		a.logger.Info(ctx, "external API server found, using it for MCP")
		close(serveErr)
	}

	mcpClient := mcp.NewClient(baseURL)
	a.logger.Info(ctx, "MCP stdio server ready")

	err := server.ServeStdio(mcpClient.GetMCPServer())
	cancel()
	if serr := <-serveErr; serr != nil && err == nil {
		err = serr
	}
	return err
}

// apiAvailable reports whether baseURL answers the API index
func apiAvailable(baseURL string) bool {
	if baseURL == "" {
		return false
	}
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(baseURL + "/api")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode < 500
}
