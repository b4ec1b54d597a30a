package badger_test

import (
	"testing"

	"github.com/marmos91/mediaforge/pkg/media"
	"github.com/marmos91/mediaforge/pkg/media/store/badger"
	"github.com/marmos91/mediaforge/pkg/media/storetest"
)

func TestConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) media.Store {
		store, err := badger.New(badger.Config{Path: t.TempDir()})
		if err != nil {
			t.Fatalf("badger.New() failed: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}

func TestInMemoryConformance(t *testing.T) {
	storetest.RunConformanceSuite(t, func(t *testing.T) media.Store {
		store, err := badger.New(badger.Config{})
		if err != nil {
			t.Fatalf("badger.New() failed: %v", err)
		}
		t.Cleanup(func() { _ = store.Close() })
		return store
	})
}
