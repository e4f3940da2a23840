package main

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/refresqueria/caja/internal/api"
	"github.com/refresqueria/caja/internal/config"
	"github.com/refresqueria/caja/internal/domain"
	"github.com/refresqueria/caja/internal/ledger"
	"github.com/refresqueria/caja/internal/notify"
	"github.com/refresqueria/caja/internal/reconciliation"
	"github.com/refresqueria/caja/internal/repository"
)

func main() {
	cfg := config.Load()
	log := config.NewLogger(cfg)

	log.Infof("initializing database at %s", cfg.DBPath)
	db, err := repository.InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("failed to init DB: %v", err)
	}
	defer db.Close()

	// Repositories.
	orderRepo := repository.NewOrderRepo(db)
	cashoutRepo := repository.NewCashoutRepo(db)
	membershipRepo := repository.NewMembershipRepo(db)

	// Services.
	notifier := notify.NewNotifier(log)
	ledgerSvc := ledger.NewService(orderRepo, notifier, log)
	engine := reconciliation.NewEngine(orderRepo, cashoutRepo, membershipRepo, log)

	// Seed demo orders if requested and the ledger is empty.
	if cfg.SeedDemo {
		count, err := orderRepo.Count()
		if err != nil {
			log.Fatalf("failed to count orders: %v", err)
		}
		if count == 0 {
			log.Info("ledger is empty, seeding demo orders from testdata...")
			if err := seedOrders(orderRepo, log); err != nil {
				log.Warnf("failed to seed demo orders: %v", err)
			}
		} else {
			log.Infof("ledger already has %d orders, skipping seed", count)
		}
	}

	router := api.NewRouter(ledgerSvc, engine, cashoutRepo, log)

	log.Info("Refresqueria till service")
	log.Infof("Listening on http://localhost:%s", cfg.Port)
	log.Infof("API base: http://localhost:%s/api/v1", cfg.Port)

	if err := http.ListenAndServe(":"+cfg.Port, router); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func seedOrders(repo *repository.OrderRepo, log *logrus.Logger) error {
	// Try multiple possible locations for testdata.
	candidates := []string{
		"testdata/orders.json",
		filepath.Join(".", "testdata", "orders.json"),
	}

	// Also try to find relative to the executable.
	if exe, err := os.Executable(); err == nil {
		dir := filepath.Dir(exe)
		candidates = append(candidates,
			filepath.Join(dir, "testdata", "orders.json"),
			filepath.Join(dir, "..", "..", "testdata", "orders.json"),
		)
	}

	var data []byte
	var loadErr error
	for _, path := range candidates {
		data, loadErr = os.ReadFile(path)
		if loadErr == nil {
			log.Infof("loaded demo orders from %s", path)
			break
		}
	}
	if loadErr != nil {
		return fmt.Errorf("could not find orders.json in any candidate path: %w", loadErr)
	}

	var orders []domain.Order
	if err := json.Unmarshal(data, &orders); err != nil {
		return fmt.Errorf("unmarshal orders: %w", err)
	}

	inserted, err := repo.BulkInsert(orders)
	if err != nil {
		return fmt.Errorf("bulk insert: %w", err)
	}

	log.Infof("seeded %d demo orders", inserted)
	return nil
}
