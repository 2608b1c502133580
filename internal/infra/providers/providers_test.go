package providers

import (
	"testing"

	"github.com/totegamma/escrow-ledger/internal/config"
	"github.com/totegamma/escrow-ledger/internal/infra/memstore"
)

func TestNewLedgerRepository(t *testing.T) {
	repo, err := NewLedgerRepository(config.Server{Store: "memory"})
	if err != nil {
		t.Fatalf("memory store: %v", err)
	}
	if _, ok := repo.(*memstore.Store); !ok {
		t.Fatalf("expected memstore, got %T", repo)
	}

	if _, err := NewLedgerRepository(config.Server{Store: "sqlite"}); err == nil {
		t.Fatalf("expected unknown store error")
	}
}

func TestOptionalServices(t *testing.T) {
	if NewSignalService(config.Server{}) != nil {
		t.Fatalf("expected no signal service without redis")
	}
	if NewCampaignCache(config.Server{}) != nil {
		t.Fatalf("expected no cache without memcached")
	}
	if NewSignalService(config.Server{RedisAddr: "localhost:6379"}) == nil {
		t.Fatalf("expected signal service")
	}
}
