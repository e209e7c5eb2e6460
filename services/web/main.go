// Web service: SMS code login, verification and file upload.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"github.com/smsgate/internal/config"
	"github.com/smsgate/internal/email"
	"github.com/smsgate/internal/fileserver"
	"github.com/smsgate/internal/handler"
	"github.com/smsgate/internal/logger"
	"github.com/smsgate/internal/middleware"
	"github.com/smsgate/internal/repository"
	"github.com/smsgate/internal/startup"
	"github.com/smsgate/internal/storage"
	"github.com/smsgate/internal/storage/memory"
	"github.com/smsgate/internal/users"
	"github.com/smsgate/internal/verification"
	"github.com/smsgate/internal/view"
)

// dbStopper is what run needs from a started embedded database.
type dbStopper interface {
	Stop() error
}

// Replaced in tests.
var (
	startEmbeddedDB = func(cfg *config.Config) (dbStopper, error) {
		db, err := startEmbeddedPostgres(cfg)
		if err != nil {
			return nil, err
		}
		return db, nil
	}
	openDB = connectDB
)

func main() {
	logger.SetPrefix("web")
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := run(ctx, os.Args[1:])
	stop()
	if err != nil {
		logger.Errorf("%v", err)
		logger.Flush(time.Second)
		os.Exit(1)
	}
	logger.Flush(2 * time.Second)
}

// run wires the service and serves until ctx is done. Every resource it opens is
// released before it returns, including on startup errors.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("web", flag.ContinueOnError)
	dev := fs.Bool("dev", false, "in-memory sessions and locally issued codes (no Redis or Twilio required)")
	embeddedDB := fs.Bool("embedded-db", false, "start embedded PostgreSQL for the upload audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}

	logger.Info("starting web service")
	cfg := config.Load()
	logger.SetLevel(cfg.LogLevel)
	if err := cfg.Validate(*dev); err != nil {
		return err
	}
	trusted, err := middleware.ParseTrustedProxies(cfg.TrustedProxies)
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}

	var store storage.SessionOTPStore
	if *dev {
		store = memory.New()
		logger.Info("dev mode: in-memory session store")
	} else {
		rc, err := startup.ConnectRedisWithRetry(ctx, cfg.Redis.URL, 60*time.Second)
		if err != nil {
			return fmt.Errorf("redis: %w", err)
		}
		store = rc
		logger.Info("redis connected")
	}
	defer store.Close()

	var gateway verification.Gateway
	if *dev {
		gateway = verification.NewLocalGateway(store, devNotifier(cfg))
		logger.Info("dev mode: verification codes issued locally")
	} else {
		gateway = verification.NewTwilioGateway(cfg.Twilio.AccountSID, cfg.Twilio.AuthToken, cfg.Twilio.VerifyServiceSID)
	}

	fileStore, err := newFileStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("upload store: %w", err)
	}

	if *embeddedDB {
		db, err := startEmbeddedDB(cfg)
		if err != nil {
			return fmt.Errorf("embedded postgres: %w", err)
		}
		defer func() {
			logger.Info("stopping embedded postgres...")
			if err := db.Stop(); err != nil {
				logger.Errorf("embedded postgres stop: %v", err)
			}
		}()
	}

	var recorder handler.UploadRecorder
	if cfg.Database.URL != "" {
		pool, err := openDB(ctx, cfg)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		recorder = repository.NewUploadRepository(pool)
		logger.Info("database connected, upload audit enabled")
	}

	tpl, err := view.New()
	if err != nil {
		return fmt.Errorf("templates: %w", err)
	}

	dir := users.New(cfg.Users)
	logger.Infof("user directory loaded (%d entries)", dir.Len())
	logger.Debugf("known identifiers: %v", dir.Identifiers())

	routes := handler.Routes(
		handler.NewLoginHandler(tpl, gateway, dir),
		handler.NewVerifyHandler(tpl, gateway, dir),
		handler.NewUploadHandler(tpl, fileStore, cfg.MaxUploadSize, recorder),
	)
	router := handler.NewRouter(routes, handler.RouterConfig{
		Store: store,
		Session: middleware.SessionOptions{
			CookieName: cfg.SessionCookie,
			TTL:        cfg.SessionTTL,
			Secure:     cfg.SecureCookies,
		},
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		TrustedProxies:     trusted,
		CORSAllowedOrigins: cfg.CORSAllowedOrigins,
	})

	srv := &http.Server{
		Addr:         cfg.ServerAddr,
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	var srvWg sync.WaitGroup
	errCh := make(chan error, 1)
	srvWg.Add(1)
	go func() {
		defer srvWg.Done()
		logger.Infof("server listening on %s", cfg.ServerAddr)
		errCh <- srv.ListenAndServe()
	}()

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr = fmt.Errorf("server: %w", err)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server shutdown: %v", err)
	}
	srvWg.Wait()
	logger.Info("server stopped")
	return serveErr
}

// devNotifier mails codes to SMTP_DEV_MAILBOX when SMTP is configured, otherwise logs them.
func devNotifier(cfg *config.Config) verification.Notifier {
	sender := email.NewSender(&cfg.SMTP)
	if sender.Configured() {
		logger.Infof("dev codes are mailed to %s", cfg.SMTP.DevMailbox)
		return sender
	}
	logger.Info("SMTP not configured, dev codes are written to the log")
	return verification.LogNotifier
}

func newFileStore(ctx context.Context, cfg *config.Config) (fileserver.Store, error) {
	if cfg.UploadBackend == "s3" {
		s, err := fileserver.NewS3Store(ctx, cfg.S3)
		if err != nil {
			return nil, err
		}
		logger.Infof("uploads go to s3 bucket %s", cfg.S3.Bucket)
		return s, nil
	}
	if err := os.MkdirAll(cfg.UploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	logger.Infof("uploads go to %s", cfg.UploadDir)
	return fileserver.NewDiskStore(cfg.UploadDir), nil
}

func connectDB(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.Database.URL)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.DBMaxConnections())
	pool, err := startup.ConnectDBWithRetry(ctx, poolCfg, 60*time.Second)
	if err != nil {
		return nil, err
	}
	migrateCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := repository.Migrate(migrateCtx, stdlib.OpenDBFromPool(pool)); err != nil {
		pool.Close()
		return nil, err
	}
	return pool, nil
}

// startEmbeddedPostgres runs a local PostgreSQL under ./.pgdata and points cfg at it.
func startEmbeddedPostgres(cfg *config.Config) (*embeddedpostgres.EmbeddedPostgres, error) {
	const (
		port     = 5433
		user     = "smsgate"
		password = "smsgate_dev"
		database = "smsgate"
	)

	dataDir := filepath.Join(".", ".pgdata")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create pgdata dir: %w", err)
	}

	db := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(port).
			Username(user).
			Password(password).
			Database(database).
			DataPath(dataDir).
			RuntimePath(filepath.Join(os.TempDir(), "smsgate-pg-runtime")),
	)

	logger.Info("starting embedded PostgreSQL...")
	if err := db.Start(); err != nil {
		return nil, fmt.Errorf("start: %w", err)
	}

	cfg.Database.URL = fmt.Sprintf(
		"postgres://%s:%s@localhost:%d/%s?sslmode=disable",
		user, password, port, database,
	)
	logger.Infof("embedded PostgreSQL running on port %d", port)
	return db, nil
}
