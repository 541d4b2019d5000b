// Package gateway assembles the full server: the OAuth authorization server,
// the authenticated MCP endpoint, and the operational routes, behind one
// chi router with graceful shutdown.
package gateway

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/sync/errgroup"

	"github.com/redditmcp/redditmcp/pkg/authserver"
	"github.com/redditmcp/redditmcp/pkg/authserver/storage"
	"github.com/redditmcp/redditmcp/pkg/authserver/tokens"
	"github.com/redditmcp/redditmcp/pkg/authserver/upstream"
	"github.com/redditmcp/redditmcp/pkg/config"
	"github.com/redditmcp/redditmcp/pkg/logger"
	"github.com/redditmcp/redditmcp/pkg/mcp"
	"github.com/redditmcp/redditmcp/pkg/reddit"
	"github.com/redditmcp/redditmcp/pkg/registries"
	"github.com/redditmcp/redditmcp/pkg/telemetry"
	"github.com/redditmcp/redditmcp/pkg/transport"
	"github.com/redditmcp/redditmcp/pkg/transport/middleware"
	"github.com/redditmcp/redditmcp/pkg/transport/session"
)

// ShutdownTimeout bounds the drain window on graceful shutdown.
const ShutdownTimeout = 10 * time.Second

// readHeaderTimeout guards against slowloris on the listener. Request bodies
// themselves stay unbounded in time because the SSE channel is long-lived.
const readHeaderTimeout = 10 * time.Second

// Gateway owns the wired components and the HTTP server.
type Gateway struct {
	cfg    *config.Config
	store  *storage.Store
	table  *session.Table
	router http.Handler
}

// New wires the gateway from configuration. The returned Gateway owns the
// session table and storage sweeper until Run returns or Shutdown is called.
func New(cfg *config.Config) (*Gateway, error) {
	up, err := upstream.NewClient(cfg.RedditClientID, cfg.RedditClientSecret,
		cfg.RedditRedirectURI, cfg.UserAgent)
	if err != nil {
		return nil, fmt.Errorf("failed to create upstream client: %w", err)
	}

	store := storage.NewStore()
	codec := tokens.NewCodec(cfg.JWTSecret, cfg.IssuerURL, cfg.IssuerURL)
	regs := registries.Default(registries.Deps{
		Reddit: reddit.NewClient(cfg.UserAgent),
	})

	table := session.NewTable(func(sessionID string, creds mcp.Credentials) *mcp.Instance {
		return mcp.NewInstance(sessionID, creds, regs)
	})

	g := &Gateway{cfg: cfg, store: store, table: table}
	g.router = g.buildRouter(
		authserver.NewHandler(cfg, store, up, codec),
		transport.NewHandler(table),
		codec,
	)
	return g, nil
}

// Router returns the assembled HTTP handler. Exposed for tests.
func (g *Gateway) Router() http.Handler {
	return g.router
}

func (g *Gateway) buildRouter(auth *authserver.Handler, mcpHandler *transport.Handler, codec *tokens.Codec) http.Handler {
	r := chi.NewRouter()

	auth.OAuthRoutes(r)
	auth.WellKnownRoutes(r)

	// Fixed order: bearer verification first, then rate limiting, protocol
	// negotiation, and the body size cap.
	r.Group(func(r chi.Router) {
		r.Use(middleware.BearerAuth(codec, g.cfg.IssuerURL))
		r.Use(middleware.RateLimit(g.cfg.RateLimitRequests, g.cfg.RateLimitWindow))
		r.Use(middleware.ProtocolVersion(mcp.ProtocolVersion))
		r.Use(middleware.SizeCap(middleware.MaxRequestBodySize))
		mcpHandler.Routes(r)
	})

	r.Get("/health", g.healthHandler)
	r.Get("/", g.indexHandler)
	r.Handle("/metrics", telemetry.Handler())

	return r
}

// Run serves until ctx is cancelled, then drains connections and releases
// the session table and storage sweeper.
func (g *Gateway) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", g.cfg.Port),
		Handler:           g.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	eg, ctx := errgroup.WithContext(ctx)

	eg.Go(func() error {
		logger.Infow("gateway listening", "addr", srv.Addr, "issuer", g.cfg.IssuerURL)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	eg.Go(func() error {
		<-ctx.Done()
		logger.Infow("shutting down gateway")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown failed: %w", err)
		}
		return nil
	})

	err := eg.Wait()

	g.table.Shutdown()
	_ = g.store.Close()
	return err
}
