// Command jobs runs one batch job and exits, for an external scheduler or a
// manual backfill. It takes the same run lock as the API's cron.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/database"
	"github.com/anjiri1684/studio_booking/jobs"
	"github.com/anjiri1684/studio_booking/notifications"
	"github.com/anjiri1684/studio_booking/payments"
	"github.com/anjiri1684/studio_booking/services"
)

var aliases = map[string]string{
	"billing":   "recurring-billing",
	"expiry":    "expiry-sweep",
	"reconcile": "intent-reconcile",
	"reminders": "expiry-reminder",
}

func main() {
	os.Exit(run())
}

func run() int {
	jobName := flag.String("job", "", "job to run: billing, expiry, reconcile or reminders")
	list := flag.Bool("list", false, "print the available jobs and exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("🔥 Invalid configuration: %v", err)
	}
	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}

	fanout, closeNotifiers := notifications.FromConfig(db, cfg.Mail, cfg.Broker)
	defer closeNotifiers()
	notifier := notifications.NewAsync(fanout, 30*time.Second)
	defer notifier.Wait()

	gateway := payments.NewWompiClient(cfg.Gateway)
	subscriptions := services.NewSubscriptionService(db, notifier)
	resolver := services.NewPaymentResolver(db, gateway, notifier)
	billing := services.NewBillingService(db, gateway, notifier)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	runLock, closeRunLock, err := jobs.NewRunLock(ctx, cfg.Redis)
	if err != nil {
		log.Fatalf("🔥 %v", err)
	}
	defer closeRunLock()

	runner := jobs.NewDefaultRunner(runLock, cfg.Jobs, billing, subscriptions, resolver)
	if *list {
		fmt.Println(strings.Join(runner.Names(), "\n"))
		return 0
	}

	name := *jobName
	if full, ok := aliases[name]; ok {
		name = full
	}
	report, err := runner.Run(ctx, name)
	if err != nil {
		log.Printf("🔥 %v", err)
		return 1
	}

	out, _ := json.MarshalIndent(report, "", "  ")
	fmt.Println(string(out))
	return 0
}
