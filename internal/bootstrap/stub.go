package bootstrap

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/scopenote/scopenote/internal/health"
	"github.com/scopenote/scopenote/internal/stubserver"
	"go.uber.org/fx"
)

const stubVersion = "0.3.0"

var defaultCORSConfig = middleware.CORSConfig{
	AllowOrigins: []string{"*"},
	AllowMethods: []string{
		http.MethodGet,
		http.MethodHead,
		http.MethodPut,
		http.MethodPatch,
		http.MethodPost,
		http.MethodDelete,
		http.MethodOptions,
	},
	AllowHeaders: []string{
		"Accept",
		"Authorization",
		"Content-Type",
		"X-Requested-With",
	},
	AllowCredentials: true,
	MaxAge:           86400,
}

func NewEchoServer() *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORSWithConfig(defaultCORSConfig))
	return e
}

func ProvideSessionStore() *stubserver.SessionStore {
	return stubserver.NewSessionStore()
}

func ProvideImageStore(lc fx.Lifecycle, cfg *Config) (*stubserver.ImageStore, error) {
	store, err := stubserver.OpenImageStore(cfg.StubDBPath)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return store.Close()
		},
	})
	return store, nil
}

func ProvideStubHandler(store *stubserver.SessionStore, images *stubserver.ImageStore, log *slog.Logger) *stubserver.Handler {
	return stubserver.NewHandler(store, images, log)
}

func ProvideHealthHandler(store *stubserver.SessionStore, images *stubserver.ImageStore) *health.Handler {
	return health.NewHandler(store, images, stubVersion)
}

func RegisterStubRoutes(e *echo.Echo, h *stubserver.Handler, hh *health.Handler) {
	h.RegisterRoutes(e)
	hh.RegisterRoutes(e)
}

func StartStubServer(lc fx.Lifecycle, e *echo.Echo, cfg *Config) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := e.Start(cfg.StubAddr); err != nil && err != http.ErrServerClosed {
					e.Logger.Fatal(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return e.Shutdown(ctx)
		},
	})
}

var StubModule = fx.Options(
	fx.Provide(
		NewEchoServer,
		ProvideSessionStore,
		ProvideImageStore,
		ProvideStubHandler,
		ProvideHealthHandler,
	),
	fx.Invoke(RegisterStubRoutes, StartStubServer),
)

func RunStub() {
	fx.New(
		fx.Provide(LoadConfig, ProvideLogger),
		StubModule,
	).Run()
}
