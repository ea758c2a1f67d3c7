package memory_test

import (
	"context"
	"testing"

	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/memory"
	"github.com/ardanlabs/statechain/foundation/blockchain/kvstore/storetest"
)

func TestMemory(t *testing.T) {
	storetest.Run(t, func(t *testing.T) kvstore.Store {
		return memory.New()
	})
}

func TestClosed(t *testing.T) {
	m := memory.New()
	m.Close()

	err := m.Save(context.Background(), []byte("k"), []byte("v"))
	if !kvstore.IsIOError(err) {
		t.Fatalf("expected an io error after close, got %v", err)
	}
}
