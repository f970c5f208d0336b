// journal-payments/cmd/payments-gateway/main.go
package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/cors"

	"github.com/example/journal-payments/internal/click"
	"github.com/example/journal-payments/internal/config"
	"github.com/example/journal-payments/internal/events"
	"github.com/example/journal-payments/internal/gateway"
	"github.com/example/journal-payments/internal/ledger"
	"github.com/example/journal-payments/internal/payme"
)

const serviceName = "payments-gateway"

func main() {
	cfg := config.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, cleanup, err := newStore(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("%s: init store: %v", serviceName, err)
	}
	defer cleanup()

	var pub ledger.Publisher = ledger.NoopPublisher{}
	if len(cfg.Brokers) > 0 {
		bus := events.New(cfg.Brokers, cfg.EventTopic)
		defer bus.Close()
		pub = bus
	}

	ldg := ledger.New(store, pub)
	resolver := cfg.ClickSecrets
	defaultSecret, err := resolver.Resolve(cfg.Click.ServiceID)
	if err != nil {
		log.Fatalf("%s: no default click secret configured", serviceName)
	}
	invoices := click.NewInvoiceClient(cfg.Click, defaultSecret)
	clickAdapter := click.NewAdapter(cfg.Click, &resolver, ldg, invoices)
	paymeAdapter := payme.NewAdapter(cfg.Payme, ldg)

	srv := gateway.NewServer(ldg, clickAdapter, invoices, paymeAdapter)
	handler := cors.AllowAll().Handler(srv.Handler())

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.Printf("%s listening at %s", serviceName, cfg.HTTPAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("%s: %v", serviceName, err)
		}
	}()

	<-ctx.Done()
	log.Printf("%s: shutting down", serviceName)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("%s: shutdown: %v", serviceName, err)
	}
}

// newStore picks Postgres when DATABASE_URL is set, otherwise the in-memory
// store (dev/test runs).
func newStore(ctx context.Context, dsn string) (ledger.Store, func(), error) {
	if dsn == "" {
		log.Printf("%s: DATABASE_URL unset, using in-memory store", serviceName)
		return ledger.NewMemStore(), func() {}, nil
	}
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, nil, err
	}
	store := ledger.NewPGStore(pool)
	if err := store.EnsureSchema(ctx); err != nil {
		pool.Close()
		return nil, nil, err
	}
	return store, pool.Close, nil
}
