package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/conf"

	"github.com/go-kratos/kratos/v2/config"
	"github.com/go-kratos/kratos/v2/config/file"
	klog "github.com/go-kratos/kratos/v2/log"
	"github.com/robfig/cron/v3"
	_ "go.uber.org/automaxprocs"
)

// defaultSweepSpec runs the reconciliation sweep every five minutes.
const defaultSweepSpec = "0 */5 * * * *"

var (
	flagconf string
)

func init() {
	flag.StringVar(&flagconf, "conf", "configs/config.yaml", "config path, eg: -conf config.yaml")
}

// CronApp holds the wired dependencies of the cron binary.
type CronApp struct {
	Checkout *biz.CheckoutUsecase
}

// newLogger creates the cron logger.
func newLogger() klog.Logger {
	return klog.With(klog.NewStdLogger(os.Stdout),
		"ts", klog.DefaultTimestamp,
		"caller", klog.DefaultCaller,
		"service.name", "mpesa-backend-cron",
	)
}

func main() {
	flag.Parse()

	c := config.New(
		config.WithSource(
			file.NewSource(flagconf),
		),
	)
	defer c.Close()

	if err := c.Load(); err != nil {
		panic(err)
	}

	var bc conf.Bootstrap
	if err := c.Scan(&bc); err != nil {
		panic(err)
	}

	if err := bc.Validate(); err != nil {
		panic(fmt.Sprintf("config validation failed: %v", err))
	}

	app, cleanup, err := wireApp(&bc)
	if err != nil {
		panic(err)
	}
	defer cleanup()

	sweepSpec := defaultSweepSpec
	if bc.Cron != nil && bc.Cron.SweepSpec != "" {
		sweepSpec = bc.Cron.SweepSpec
	}

	cronScheduler := cron.New(cron.WithSeconds())

	_, err = cronScheduler.AddFunc(sweepSpec, func() {
		log.Println("[CRON] Starting STK reconciliation sweep...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		count, err := app.Checkout.SweepStuckTransactions(ctx)
		if err != nil {
			log.Printf("[CRON] Error sweeping stuck STK transactions: %v", err)
		} else {
			log.Printf("[CRON] Reconciled %d stuck STK transactions", count)
		}
		log.Println("[CRON] Finished STK reconciliation sweep")
	})
	if err != nil {
		panic(fmt.Sprintf("failed to add sweep job: %v", err))
	}

	cronScheduler.Start()
	log.Println("========================================")
	log.Println("Cron jobs started successfully")
	log.Printf("  - STK reconciliation sweep: %s", sweepSpec)
	log.Println("========================================")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down gracefully...")

	ctx := cronScheduler.Stop()
	select {
	case <-ctx.Done():
		log.Println("Cron jobs stopped gracefully")
	case <-time.After(5 * time.Second):
		log.Println("Cron jobs forced to stop after timeout")
	}
}
