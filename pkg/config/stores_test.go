package config

import (
	"testing"
	"time"

	"github.com/marmos91/mediaforge/pkg/media/store/instrumented"
	"github.com/marmos91/mediaforge/pkg/media/store/memory"
)

type nopStoreMetrics struct{}

func (nopStoreMetrics) ObserveOperation(string, string, time.Duration, error) {}
func (nopStoreMetrics) RecordCacheHitRatio(string, string, float64)          {}

func TestCreateAccountService(t *testing.T) {
	cfg := GetDefaultConfig()

	if svc := CreateAccountService(&cfg.Accounts, memory.New()); svc == nil {
		t.Error("Expected an account service over the memory store")
	}

	// The metrics wrapper only exposes media.Store.
	wrapped := instrumented.Wrap(memory.New(), "memory", nopStoreMetrics{})
	if svc := CreateAccountService(&cfg.Accounts, wrapped); svc != nil {
		t.Error("Expected no account service over a store without users")
	}
}
