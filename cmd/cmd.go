package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/anicoll/dronelink/internal/pkg/config"
	"github.com/anicoll/dronelink/internal/pkg/database"
	"github.com/anicoll/dronelink/internal/pkg/database/migration"
	"github.com/anicoll/dronelink/internal/pkg/device"
	"github.com/anicoll/dronelink/internal/pkg/link"
	"github.com/anicoll/dronelink/internal/pkg/logic"
	"github.com/anicoll/dronelink/internal/pkg/model"
	"github.com/anicoll/dronelink/internal/pkg/mqtt"
	"github.com/anicoll/dronelink/internal/pkg/publisher"
	"github.com/anicoll/dronelink/internal/pkg/server"
	"github.com/anicoll/dronelink/internal/pkg/session"
	"github.com/anicoll/dronelink/pkg/hasher"
)

const (
	defaultReconnectDelay = 5 * time.Second
	cleanupSchedule       = "0 3 * * *"
)

var errCron = errors.New("cron error")

func LinkCommand(ctx *cli.Context) error {
	deviceCfg, err := config.LoadDeviceConfig()
	if err != nil {
		return err
	}
	cfg := &config.Config{
		LinkCfg: &config.LinkConfig{
			URL:                ctx.String("link-url"),
			InsecureSkipVerify: ctx.Bool("link-insecure"),
			PingInterval:       ctx.Duration("link-ping-interval"),
			ReconnectDelay:     ctx.Duration("reconnect-delay"),
		},
		MqttCfg: &config.MqttConfig{
			Host:        ctx.String("mqtt-host"),
			Username:    ctx.String("mqtt-user"),
			Password:    ctx.String("mqtt-pass"),
			TopicPrefix: ctx.String("mqtt-topic-prefix"),
		},
		DatabaseCfg: &config.DatabaseConfig{
			URL:            ctx.String("database-url"),
			MigrationsPath: ctx.String("migrations-folder"),
			Retention:      ctx.Duration("event-retention"),
		},
		DeviceCfg:    deviceCfg,
		HTTPAddr:     ctx.String("http-addr"),
		APITokenHash: ctx.String("api-token-hash"),
		APIJWTSecret: ctx.String("api-jwt-secret"),
		LogLevel:     ctx.String("log-level"),
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // flushes buffer, if any.
	}()
	zap.ReplaceGlobals(logger)

	var journal Journal
	if cfg.DatabaseCfg.URL != "" {
		if err := migration.Migrate(cfg.DatabaseCfg.URL, cfg.DatabaseCfg.MigrationsPath); err != nil {
			return err
		}
		db, err := database.Connect(ctx.Context, cfg.DatabaseCfg.URL)
		if err != nil {
			return err
		}
		defer db.Close()
		if err := publisher.RegisterPublisher("postgres", db); err != nil {
			return err
		}
		journal = db
	}

	if cfg.MqttCfg.Host != "" {
		mqttSvc := mqtt.New(mqtt.NewClient(cfg.MqttCfg.Host, cfg.MqttCfg.Username, cfg.MqttCfg.Password), cfg.MqttCfg.TopicPrefix)
		if err := mqttSvc.Connect(); err != nil {
			return err
		}
		defer mqttSvc.Close()
		if err := publisher.RegisterPublisher("mqtt", mqttSvc); err != nil {
			return err
		}
	}

	errorChan := make(chan error, 1000)
	streams := logic.NewLogicSvc(deviceCfg.Rates())

	var sess *session.Session
	linkSvc := link.New(cfg.LinkCfg, link.HandlerFunc(func(msg model.Message) {
		sess.HandleMessage(msg)
	}), errorChan)
	sess = session.New(linkSvc, deviceCfg.Device(), session.WithDiscoveryHook(func(d *device.Device) {
		// failures are logged per stream.
		_ = streams.ConfigureStreams(d)
	}))

	return run(ctx.Context, cfg, linkSvc, sess, errorChan, logger, journal)
}

// TokenCommand prints a control API credential. With --api-jwt-secret it signs an operator
// JWT, otherwise it prints a fresh static token and the hash to configure it with.
func TokenCommand(ctx *cli.Context) error {
	if secret := ctx.String("api-jwt-secret"); secret != "" {
		signed, err := server.NewJWT([]byte(secret), ctx.String("subject"), ctx.Duration("ttl"))
		if err != nil {
			return err
		}
		fmt.Fprintf(ctx.App.Writer, "token: %s\n", signed)
		return nil
	}

	token, err := hasher.GenerateToken(32)
	if err != nil {
		return err
	}
	hash, err := hasher.HashToken([]byte(token))
	if err != nil {
		return err
	}
	fmt.Fprintf(ctx.App.Writer, "token: %s\nAPI_TOKEN_HASH=%s\n", token, hash)
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	logCfg := zap.NewProductionConfig()

	var err error
	logCfg.Level, err = zap.ParseAtomicLevel(level)
	if err != nil {
		return nil, err
	}
	logCfg.OutputPaths = []string{"stdout"}
	logCfg.ErrorOutputPaths = []string{"stdout"}
	logCfg.Sampling = nil
	return logCfg.Build(zap.AddCaller(), zap.AddStacktrace(zap.ErrorLevel))
}

func run(ctx context.Context, cfg *config.Config, linkSvc LinkService, sess *session.Session, errorChan chan error, logger *zap.Logger, db Journal) error {
	eg, ctx := errgroup.WithContext(ctx)

	if db != nil {
		retention := database.DefaultRetention
		if cfg.DatabaseCfg != nil && cfg.DatabaseCfg.Retention > 0 {
			retention = cfg.DatabaseCfg.Retention
		}
		eg.Go(func() error {
			return cronDbCleanup(ctx, db, retention, errorChan)
		})
	}

	eg.Go(func() error {
		// keeps draining after cancellation so the final events of a closing session are published.
		return publisher.Drain(context.WithoutCancel(ctx), sess.Events())
	})

	eg.Go(func() error {
		defer sess.Close()
		return maintainLink(ctx, cfg, linkSvc, logger)
	})

	if cfg.HTTPAddr != "" {
		var events server.EventReader
		if db != nil {
			events = db
		}
		middlewares := []func(http.Handler) http.Handler{server.LoggingMiddleware}
		if cfg.APITokenHash != "" || cfg.APIJWTSecret != "" {
			middlewares = append(middlewares, server.AuthMiddleware(cfg.APITokenHash, []byte(cfg.APIJWTSecret)))
		}
		srv := &http.Server{
			Handler:      server.New(sess, events).Handler(middlewares...),
			Addr:         cfg.HTTPAddr,
			WriteTimeout: 15 * time.Second,
			ReadTimeout:  15 * time.Second,
		}
		eg.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
		eg.Go(func() error {
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
	}

	eg.Go(func() error {
		// handle any async errors from service
		for {
			select {
			case err := <-errorChan:
				if errors.Is(err, errCron) {
					logger.Error("cron error", zap.Error(err))
					return err
				}
				logger.Warn("async error", zap.Error(err))
			case <-ctx.Done():
				logger.Info("context done")
				return ctx.Err()
			}
		}
	})

	return eg.Wait()
}

// maintainLink keeps the link connected, redialling after each drop until ctx is done.
// Only the first dial is fatal; later dial failures are retried after the reconnect delay.
func maintainLink(ctx context.Context, cfg *config.Config, linkSvc LinkService, logger *zap.Logger) error {
	delay := defaultReconnectDelay
	if cfg.LinkCfg != nil && cfg.LinkCfg.ReconnectDelay > 0 {
		delay = cfg.LinkCfg.ReconnectDelay
	}
	defer linkSvc.Close()

	if err := linkSvc.Connect(ctx); err != nil {
		return err
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-linkSvc.Done():
		}
		logger.Warn("link dropped, reconnecting", zap.Duration("delay", delay))

		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			err := linkSvc.Connect(ctx)
			if err == nil {
				logger.Info("link reconnected")
				break
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Warn("link reconnect failed", zap.Error(err), zap.Duration("retry_in", delay))
		}
	}
}

func cronDbCleanup(ctx context.Context, db Journal, retention time.Duration, errChan chan error) error {
	if err := db.Cleanup(ctx, retention); err != nil {
		return err
	}

	// CRON automation
	c := cron.New()
	if _, err := c.AddFunc(cleanupSchedule, func() {
		if err := db.Cleanup(ctx, retention); err != nil {
			zap.L().Error("error cleaning up database", zap.Error(err))
			errChan <- errCron
			return
		}
	}); err != nil {
		return err
	}

	c.Start()
	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}
