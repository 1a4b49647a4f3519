// sweeper periodically expires stale pending ephemeral codes and account
// merge requests. Run one instance alongside the platform; sweeps are
// idempotent so overlapping runs are harmless. Set SWEEP_INTERVAL to tune
// the cadence and OTLP_ENDPOINT to export metrics.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"loginus/internal/audit"
	auditrepo "loginus/internal/audit/repository"
	coderepo "loginus/internal/code/repository"
	codeservice "loginus/internal/code/service"
	"loginus/internal/config"
	"loginus/internal/db"
	mergerepo "loginus/internal/merge/repository"
	mergeservice "loginus/internal/merge/service"
	"loginus/internal/telemetry"
	teleotel "loginus/internal/telemetry/otel"
	userrepo "loginus/internal/user/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	if cfg.DatabaseURL == "" {
		log.Fatal("DATABASE_URL is not set; create a .env from .env.example or set DATABASE_URL")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	providers, err := teleotel.NewProviders(ctx, cfg.OTLPEndpoint, "loginus-sweeper", cfg.OTLPInsecure)
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	providers.SetGlobal()

	conn, err := db.Open(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer conn.Close()

	audits := audit.NewLogger(auditrepo.NewPostgresRepository(conn), teleotel.NewEventEmitter(providers.LoggerProvider))
	codes := codeservice.NewManager(coderepo.NewPostgresRepository(conn), audits)
	merges := mergeservice.NewResolver(mergerepo.NewPostgresRepository(conn), userrepo.NewPostgresRepository(conn), audits)

	meter := otel.Meter("loginus.sweeper")
	sweptCodes, err := meter.Int64Counter("sweeper.codes_expired",
		metric.WithDescription("Pending ephemeral codes marked expired by the sweep"))
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}
	sweptMerges, err := meter.Int64Counter("sweeper.merge_requests_expired",
		metric.WithDescription("Pending merge requests marked expired by the sweep"))
	if err != nil {
		log.Fatalf("telemetry: %v", err)
	}

	go func() {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
		<-quit
		log.Println("sweeper: shutting down...")
		cancel()
	}()

	interval := cfg.SweepEvery()
	log.Printf("sweeper: running every %s", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(ctx, codes, merges, sweptCodes, sweptMerges)
	for {
		select {
		case <-ctx.Done():
			// Let in-flight async audit emits finish before the providers go away.
			time.Sleep(telemetry.ShutdownDrainDuration)
			shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := providers.Shutdown(shutCtx); err != nil {
				log.Printf("sweeper: telemetry shutdown: %v", err)
			}
			shutCancel()
			log.Println("sweeper: stopped")
			return
		case <-ticker.C:
			sweep(ctx, codes, merges, sweptCodes, sweptMerges)
		}
	}
}

// sweep runs one pass over both tables. Failures are logged; the next tick retries.
func sweep(ctx context.Context, codes *codeservice.Manager, merges *mergeservice.Resolver, sweptCodes, sweptMerges metric.Int64Counter) {
	if n, err := codes.Sweep(ctx); err != nil {
		log.Printf("sweeper: codes: %v", err)
	} else if n > 0 {
		sweptCodes.Add(ctx, n)
		log.Printf("sweeper: expired %d codes", n)
	}
	if n, err := merges.Sweep(ctx); err != nil {
		log.Printf("sweeper: merge requests: %v", err)
	} else if n > 0 {
		sweptMerges.Add(ctx, n)
		log.Printf("sweeper: expired %d merge requests", n)
	}
}
