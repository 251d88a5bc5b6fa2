package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/iliyamo/videotube-identity/internal/config"
	"github.com/iliyamo/videotube-identity/internal/database"
	"github.com/iliyamo/videotube-identity/internal/graph"
	"github.com/iliyamo/videotube-identity/internal/handler"
	"github.com/iliyamo/videotube-identity/internal/logger"
	"github.com/iliyamo/videotube-identity/internal/middleware"
	"github.com/iliyamo/videotube-identity/internal/queue"
	"github.com/iliyamo/videotube-identity/internal/repository"
	"github.com/iliyamo/videotube-identity/internal/router"
	"github.com/iliyamo/videotube-identity/internal/service"
	"github.com/iliyamo/videotube-identity/internal/session"
	"github.com/iliyamo/videotube-identity/internal/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// no environment yet, so report through the JSON logger
		boot := logger.New("")
		boot.Fatal().Err(err).Msg("load config")
	}
	log := logger.New(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	principals := repository.NewPrincipalRepo(db)
	subs := repository.NewSubscriptionRepo(db)
	history := repository.NewHistoryRepo(db)
	hasher := utils.NewBcrypt(cfg.BcryptCost)

	accessSigner, err := session.NewSigner(cfg.AccessSecret, session.KindAccess, cfg.Issuer, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("access signer")
	}
	refreshSigner, err := session.NewSigner(cfg.RefreshSecret, session.KindRefresh, cfg.Issuer, nil)
	if err != nil {
		log.Fatal().Err(err).Msg("refresh signer")
	}
	issuer, err := session.NewIssuer(principals, accessSigner, refreshSigner, cfg.AccessTTL, cfg.RefreshTTL)
	if err != nil {
		log.Fatal().Err(err).Msg("token issuer")
	}
	verifier := session.NewVerifier(principals, accessSigner, refreshSigner)

	var events session.EventPublisher
	if cfg.Broker.Enabled {
		pub := service.NewQueuePublisher(cfg.Broker, log)
		defer pub.Close()
		events = pub
		go func() {
			err := queue.StartSessionConsumer(ctx, cfg.Broker.URL, cfg.Broker.Queue, cfg.Broker.LogDir, log)
			if err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("session consumer stopped")
			}
		}()
	}

	sessions := session.NewController(principals, issuer, verifier, hasher, session.Options{
		RevokeOnReuse: cfg.RevokeOnReuse,
		Events:        events,
		Logger:        log,
	})
	accounts := service.NewAccounts(principals, hasher, sessions)
	social := service.NewSocial(principals, subs, history)
	query := graph.NewQuery(principals, subs, history)

	var mw router.Middlewares
	if rdb := config.NewRedisClient(cfg.Redis); rdb != nil {
		defer rdb.Close()
		mw = router.Middlewares{
			RateLimit:       middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
			Cache:           middleware.NewRedisCache(cfg.Cache, rdb, log),
			CacheInvalidate: middleware.InvalidateViewer(cfg.Cache, rdb, log),
		}
	} else {
		log.Warn().Str("addr", cfg.Redis.Addr).Msg("redis unreachable; rate limiting and caching disabled")
	}

	e := echo.New()
	e.HideBanner = true
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))
	e.Use(attachLogger(log))

	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(sessions, accounts, handler.CookieOptions{Secure: cfg.CookieSecure}), sessions, mw)
	router.RegisterChannels(e, handler.NewChannelHandler(query, social), sessions, mw)
	router.RegisterAdmin(e, handler.NewAdminHandler(sessions), sessions)

	go func() {
		addr := ":" + cfg.Port
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server")
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("shutdown")
	}
}

func requestLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:   true,
		LogURI:      true,
		LogStatus:   true,
		LogLatency:  true,
		LogRemoteIP: true,
		LogError:    true,
		HandleError: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			ev := log.Info()
			if v.Error != nil {
				ev = log.Error().Err(v.Error)
			}
			ev.Str("method", v.Method).
				Str("uri", v.URI).
				Int("status", v.Status).
				Dur("latency", v.Latency).
				Str("remote_ip", v.RemoteIP).
				Msg("request")
			return nil
		},
	})
}

// attachLogger makes log available to handlers through zerolog.Ctx.
func attachLogger(log zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			c.SetRequest(req.WithContext(log.WithContext(req.Context())))
			return next(c)
		}
	}
}
