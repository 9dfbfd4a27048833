package server_test

import (
	"testing"
	"time"

	"github.com/openr-go/openr/kvstore"
	"github.com/openr-go/openr/kvstore/kvtesting"
	"github.com/openr-go/openr/rpc/common"
	"github.com/openr-go/openr/rpc/server"
)

func TestSubscribeKvStoreReturnsUpdateWithinHoldTime(t *testing.T) {
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer store.Close()

	adapter := server.NewKvStoreServerAdapter(nil, time.Second)

	respCh := make(chan *common.Message, 1)
	go func() {
		req := common.NewSubscribeKvStoreRequest(string(kvstore.DefaultArea), nil)
		respCh <- adapter.Handle(req, store)
	}()

	time.Sleep(20 * time.Millisecond)
	if _, err := store.SetKeyVals(map[string]*kvstore.Value{
		"k": {Version: 1, OriginatorId: "node-a", Payload: []byte("v"), Ttl: kvstore.TTLInfinity},
	}, ""); err != nil {
		t.Fatalf("SetKeyVals: %v", err)
	}

	select {
	case resp := <-respCh:
		if resp.Publication == nil || resp.Publication.KeyVals["k"] == nil {
			t.Fatalf("expected the subscribe response to carry key k, got %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("subscribeKvStore did not return before the hold time expired")
	}
}

func TestSubscribeKvStoreExpiresWithNoChange(t *testing.T) {
	store := kvstore.NewStore(kvstore.DefaultArea, "node-a", nil, kvstore.TTLInfinity, 1, kvtesting.NewTestLogger())
	defer store.Close()

	adapter := server.NewKvStoreServerAdapter(nil, 30*time.Millisecond)

	req := common.NewSubscribeKvStoreRequest(string(kvstore.DefaultArea), nil)
	start := time.Now()
	resp := adapter.Handle(req, store)
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Fatalf("expected the handler to block for the hold time, returned after %s", elapsed)
	}
	if resp.Publication == nil || len(resp.Publication.KeyVals) != 0 {
		t.Fatalf("expected an empty no-change publication, got %+v", resp)
	}
}
