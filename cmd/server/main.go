// Command server runs the Nemo chat backend.
//
// @title           Nemo API
// @version         1.0
// @description     Session-authenticated chat backend: users, conversations, messages, profile analysis and the Gemini assistant.
// @BasePath        /api
// @securityDefinitions.apikey SessionCookie
// @in              cookie
// @name            session
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	_ "github.com/tbourn/nemo-backend/docs"
	"github.com/tbourn/nemo-backend/internal/assistant"
	"github.com/tbourn/nemo-backend/internal/attachments"
	"github.com/tbourn/nemo-backend/internal/auth"
	"github.com/tbourn/nemo-backend/internal/config"
	"github.com/tbourn/nemo-backend/internal/docstore"
	httpapi "github.com/tbourn/nemo-backend/internal/http"
	"github.com/tbourn/nemo-backend/internal/http/handlers"
	"github.com/tbourn/nemo-backend/internal/notify"
	"github.com/tbourn/nemo-backend/internal/observability"
	"github.com/tbourn/nemo-backend/internal/repo"
	"github.com/tbourn/nemo-backend/internal/services"
	"github.com/tbourn/nemo-backend/internal/session"
	"github.com/tbourn/nemo-backend/internal/sysutil"
)

var version = "dev" // set by ldflags

func main() {
	_ = godotenv.Load()

	cfg := config.MustLoad()
	log.Logger = sysutil.NewLogger(os.Stderr, cfg.LogPretty)
	lvl := sysutil.SetLogLevel(cfg.LogLevel)
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info().Str("version", version).Stringer("level", lvl).Msg("starting")
	if err := run(ctx, cfg); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(ctx context.Context, cfg config.Config) error {
	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown")
		}
	}()

	// Firebase is needed by the Firestore store and by every Firebase
	// integration; with SQLite and no project it stays off. A failed store
	// keeps the process up: store-backed routes answer 500 until restart.
	var app *firebase.App
	if cfg.Store.Backend == config.BackendFirestore || cfg.Firebase.ProjectID != "" || cfg.Firebase.CredentialsFile != "" {
		if app, err = auth.NewApp(ctx, cfg.Firebase); err != nil {
			log.Error().Err(err).Msg("firebase unavailable")
		}
	}

	var ready atomic.Bool
	store, closer, err := openStore(ctx, cfg, app)
	if err != nil {
		log.Error().Err(err).Str("backend", cfg.Store.Backend).Msg("store unavailable")
	} else {
		ready.Store(true)
		defer func() {
			if err := closer.Close(); err != nil {
				log.Warn().Err(err).Msg("store close")
			}
		}()
	}

	var (
		verifier handlers.IdentityVerifier
		notifier services.Notifier
		uploader assistant.Uploader
	)
	if app != nil {
		ac, err := app.Auth(ctx)
		if err != nil {
			return fmt.Errorf("firebase auth: %w", err)
		}
		verifier = auth.NewFirebaseVerifier(ac)

		if mc, err := app.Messaging(ctx); err != nil {
			log.Warn().Err(err).Msg("notifications disabled")
		} else {
			notifier = notify.NewFCM(mc, sysutil.FirstNonEmpty(cfg.Firebase.NotificationLink, firstOf(cfg.CORS.AllowedOrigins)))
		}

		if cfg.Firebase.StorageBucket != "" {
			sc, err := app.Storage(ctx)
			if err != nil {
				return fmt.Errorf("firebase storage: %w", err)
			}
			bh, err := sc.Bucket(cfg.Firebase.StorageBucket)
			if err != nil {
				return fmt.Errorf("firebase bucket: %w", err)
			}
			uploader = attachments.New(bh, cfg.Firebase.StorageBucket)
		}
	}

	var revoker session.Revoker
	if cfg.Redis.Addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		defer rdb.Close()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		revoker = session.NewRedisRevoker(rdb)
	}
	sessions := session.NewManager(cfg.Session.Secret, cfg.Session.TTL, revoker)

	users := services.NewUserService(store, notifier)
	conversations := services.NewConversationService(store)
	messages := services.NewMessageService(store, cfg.IdempotencyTTL)
	profiles := services.NewProfileService(store)
	library := services.NewLibraryService(store)

	deps := handlers.Deps{
		Verifier: verifier,
		Sessions: sessions,
		Cookie: session.CookieOptions{
			Name:     cfg.Session.CookieName,
			Path:     "/",
			Secure:   cfg.Session.CookieSecure,
			SameSite: session.ParseSameSite(cfg.Session.SameSite),
		},
		Users:         users,
		Conversations: conversations,
		Messages:      messages,
		Profiles:      profiles,
		Library:       library,
	}
	if oa := auth.NewGoogleOAuth(cfg.OAuth); oa != nil {
		deps.OAuth = oa
	}

	var bot *assistant.Assistant
	if cfg.Gemini.Enabled() {
		gc, err := assistant.NewGemini(ctx, cfg.Gemini)
		if err != nil {
			return err
		}
		bot = assistant.New(assistant.Deps{
			Gemini:        gc,
			Conversations: conversations,
			Messages:      messages,
			Users:         users,
			Profiles:      profiles,
			Uploader:      uploader,
		}, assistant.NewConfig(cfg.Gemini, cfg.Assistant))
		deps.Assistant = bot
	} else {
		log.Warn().Msg("GEMINI_API_KEY and GEMINI_PROJECT unset; assistant routes answer 503")
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, httpapi.Deps{
		Handlers:    handlers.New(deps),
		Sessions:    sessions,
		Idempotency: httpapi.IdempotencyLookup(store),
		Ready:       ready.Load,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", srv.Addr).
			Str("store", cfg.Store.Backend).
			Bool("assistant", bot.Enabled()).
			Bool("notifications", notifier != nil).
			Msg("listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	log.Info().Msg("shutting down")
	ready.Store(false)
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
	}
	// Background profile analyses finish before the store closes.
	if bot != nil {
		bot.Wait()
	}
	return nil
}

// openStore selects the persistence backend.
func openStore(ctx context.Context, cfg config.Config, app *firebase.App) (services.Store, io.Closer, error) {
	switch cfg.Store.Backend {
	case config.BackendSQLite:
		db, err := repo.OpenSQLite(cfg.Store.DBPath)
		if err != nil {
			return nil, nil, err
		}
		if err := repo.AutoMigrate(db); err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		return repo.NewStore(db), sqlDB, nil
	default:
		if app == nil {
			return nil, nil, errors.New("firestore needs a Firebase app")
		}
		fc, err := app.Firestore(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("firestore: %w", err)
		}
		ds := docstore.New(fc)
		return ds, ds, nil
	}
}

func firstOf(vals []string) string {
	if len(vals) == 0 {
		return ""
	}
	return vals[0]
}
