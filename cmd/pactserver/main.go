package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/swaggo/swag"
	"go.uber.org/zap"

	_ "pactline-backend/docs"

	"pactline-backend/core/pact"
	pactmw "pactline-backend/middleware/pact"
	pactstore "pactline-backend/storage/pact"
)

type config struct {
	Port        string
	StoreDriver string
	PGDSN       string
	APIKey      string
	DevLog      bool
}

func loadConfig() config {
	port := os.Getenv("PACT_PORT")
	if port == "" {
		port = "3001"
	}

	storeDriver := os.Getenv("PACT_STORE_DRIVER")
	if storeDriver == "" {
		storeDriver = "memory"
	}

	devLog := false
	if raw := os.Getenv("PACT_DEV_LOG"); raw != "" {
		if v, err := strconv.ParseBool(raw); err == nil {
			devLog = v
		}
	}

	return config{
		Port:        port,
		StoreDriver: storeDriver,
		PGDSN:       os.Getenv("PACT_PG_DSN"),
		APIKey:      os.Getenv("PACT_API_KEY"),
		DevLog:      devLog,
	}
}

func main() {
	cfg := loadConfig()

	logger, err := newLogger(cfg.DevLog)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync()

	ctx := context.Background()
	var store pact.Store
	switch cfg.StoreDriver {
	case "postgres":
		if cfg.PGDSN == "" {
			logger.Fatal("PACT_PG_DSN required when PACT_STORE_DRIVER=postgres")
		}
		pg, err := pactstore.NewPGStore(ctx, cfg.PGDSN)
		if err != nil {
			logger.Fatal("failed to init store", zap.Error(err))
		}
		store = pg
	default:
		store = pactstore.NewMemoryStore()
	}
	defer store.Close()

	ledger := pact.NewLedger(store, pact.NewMemoryVault(), logger)
	server := pactmw.NewServer(ledger, cfg.APIKey, prometheus.DefaultRegisterer, logger)

	mux := http.NewServeMux()
	server.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/swagger/doc.json", func(w http.ResponseWriter, r *http.Request) {
		doc, err := swag.ReadDoc()
		if err != nil {
			http.Error(w, "swagger doc unavailable", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(doc))
	})

	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	logger.Info("pact server starting",
		zap.String("port", cfg.Port),
		zap.String("driver", cfg.StoreDriver))
	if err := srv.ListenAndServe(); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}

func newLogger(dev bool) (*zap.Logger, error) {
	if dev {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}
