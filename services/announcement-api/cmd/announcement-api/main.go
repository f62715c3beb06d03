package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mutter0815/Announcer/internal/announce"
	"github.com/Mutter0815/Announcer/internal/dispatch"
	"github.com/Mutter0815/Announcer/internal/notify"
	"github.com/Mutter0815/Announcer/internal/store"
	"github.com/Mutter0815/Announcer/pkg/config"
	"github.com/Mutter0815/Announcer/pkg/db"
	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/rmq"
	"github.com/Mutter0815/Announcer/services/announcement-api/server"
)

func main() {
	config.MustLoadAPI()
	cfg := config.API

	logx.Init(cfg.LogLevel, "announcement-api")
	defer logx.Sync()

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer func() {
		if err := sqlDB.Close(); err != nil {
			logx.L().Warnw("db_close_error", "error", err)
		} else {
			logx.L().Infow("db_closed")
		}
	}()

	st := store.New(sqlDB)
	migrateCtx, cancelMigrate := context.WithTimeout(context.Background(), 10*time.Second)
	err = st.Migrate(migrateCtx)
	cancelMigrate()
	if err != nil {
		logx.L().Fatalw("db_migrate_error", "error", err)
	}

	pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.OutboundQueue)
	if err != nil {
		logx.L().Fatalw("rmq_init_error", "error", err)
	}
	defer func() {
		if err := pub.Close(); err != nil {
			logx.L().Warnw("rmq_publisher_close_error", "error", err)
		} else {
			logx.L().Infow("rmq_publisher_closed")
		}
	}()

	engine := dispatch.New(st, notify.NewAMQP(pub), dispatch.Options{
		Workers:       cfg.Dispatch.Workers,
		RatePerSec:    cfg.Dispatch.RatePerSec,
		SendTimeout:   cfg.Dispatch.SendTimeout,
		SkipDelivered: cfg.Dispatch.SkipDelivered,
		ServiceURL:    cfg.ServiceURL,
		BotID:         cfg.BotID,
	})
	svc := announce.New(st, engine)

	srv := server.NewHTTPServer(":"+cfg.Port, server.NewHandlers(svc))

	go func() {
		logx.L().Infow("api_listen_start", "addr", ":"+cfg.Port, "outbound_queue", pub.Queue())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logx.L().Fatalw("http_server_error", "error", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	sig := <-stop
	logx.L().Infow("signal_received", "signal", sig.String())

	// Shutdown waits for in-flight sends up to this deadline.
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logx.L().Errorw("server_shutdown_error", "error", err)
	} else {
		logx.L().Infow("server_shutdown_success")
	}

	logx.L().Infow("announcement-api stopped gracefully")
}
