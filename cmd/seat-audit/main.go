// Command seat-audit consumes the seat activity queue and appends one
// line per reserve, release and move to an audit log file.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"github.com/iliyamo/seatsync/internal/config"
	"github.com/iliyamo/seatsync/internal/queue"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "seat-audit: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var envFile, logPath string
	pflag.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")
	pflag.StringVar(&logPath, "out", "logs/seat_activity.log", "audit log file")
	pflag.Parse()

	_ = godotenv.Load(envFile)
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	qcfg := config.LoadQueueConfig()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("seat-audit: consuming", "queue", qcfg.QueueName, "out", logPath)
	err := queue.StartActivityConsumer(ctx, qcfg.URL, qcfg.QueueName, queue.AuditLog{Path: logPath}, log)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
