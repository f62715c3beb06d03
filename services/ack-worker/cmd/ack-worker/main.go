package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/Mutter0815/Announcer/internal/announce"
	"github.com/Mutter0815/Announcer/internal/store"
	"github.com/Mutter0815/Announcer/pkg/config"
	"github.com/Mutter0815/Announcer/pkg/db"
	"github.com/Mutter0815/Announcer/pkg/logx"
	"github.com/Mutter0815/Announcer/pkg/rmq"
	"github.com/Mutter0815/Announcer/services/ack-worker/worker"
)

func main() {
	config.MustLoadWorker()
	cfg := config.Worker

	logx.Init(cfg.LogLevel, "ack-worker")
	defer logx.Sync()

	sqlDB, err := db.Open(cfg.DBDSN)
	if err != nil {
		logx.L().Fatalw("db_open_error", "error", err)
	}
	defer sqlDB.Close()

	cons, err := rmq.NewConsumer(cfg.RMQURL, cfg.AckQueue, cfg.Prefetch)
	if err != nil {
		logx.L().Fatalw("rmq_consumer_init_error", "error", err)
	}
	defer cons.Close()

	pub, err := rmq.NewPublisher(cfg.RMQURL, cfg.AckQueue)
	if err != nil {
		logx.L().Fatalw("rmq_publisher_init_error", "error", err)
	}
	defer pub.Close()

	// Acknowledgements never dispatch, so the tracker runs without an engine.
	tracker := announce.New(store.New(sqlDB), nil)
	w := worker.New(tracker, cons, pub, cfg.RetryMax)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logx.L().Infow("ack_worker_start", "queue", cons.Queue)
	if err := w.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logx.L().Errorw("worker_error", "error", err)
	}
}
