// Package authfront wires the authentication front together: an echo
// server carrying the edge redirect gate, the auth API and a reverse
// proxy to the upstream application whose pages it protects.
package authfront

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/nubauth/authfront/api"
	"github.com/nubauth/authfront/gate"
	"github.com/nubauth/authfront/provider"
	"github.com/nubauth/authfront/session"
	"github.com/segmentio/ksuid"
)

type Server struct {
	Config Config
	engine *echo.Echo
}

func New(config Config) (*Server, error) {
	if err := ValidateConfig(&config); err != nil {
		return nil, err
	}
	config.Gate.ApplyDefaults()

	client, err := provider.NewClient(config.Provider)
	if err != nil {
		return nil, fmt.Errorf("create provider client: %w", err)
	}
	oracle := session.NewOracle(client, config.Cookies)

	upstreamURL, err := url.Parse(config.Upstream)
	if err != nil {
		return nil, fmt.Errorf("parse upstream URL: %w", err)
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	e.Use(middleware.RequestIDWithConfig(middleware.RequestIDConfig{
		Generator: func() string { return ksuid.New().String() },
	}))
	e.Use(gate.Middleware(oracle, config.Gate))

	authAPI := api.New(client, oracle, config.Cookies, api.Config{
		BaseURL:         config.BaseURL,
		LoginPath:       config.Gate.LoginPath,
		DefaultRedirect: config.Gate.PrivatePrefix,
	})
	authAPI.MountRoutes(e.Group(""))

	// everything the auth surface does not own is the upstream's
	proxy := httputil.NewSingleHostReverseProxy(upstreamURL)
	e.Any("/*", echo.WrapHandler(proxy))
	slog.Info("created upstream proxy", "destination", config.Upstream)

	return &Server{
		Config: config,
		engine: e,
	}, nil
}

func NewFromConfigFile(path string) (*Server, error) {
	config, err := LoadConfigFile(path)
	if err != nil {
		return nil, err
	}
	return New(*config)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.engine.ServeHTTP(w, r)
}

func (s *Server) ListenAndServe(ctx context.Context) error {
	server := &http.Server{
		Addr:         s.Config.Address,
		Handler:      s.engine,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
	}

	// stop server when context is done
	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	slog.Info("starting authfront", "address", s.Config.Address, "base_url", s.Config.BaseURL)
	return server.ListenAndServe()
}
