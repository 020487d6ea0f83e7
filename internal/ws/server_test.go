package ws

import (
	"testing"
	"time"
)

func TestBillWatcherScanGuard(t *testing.T) {
	bw := newBillWatcher(nil, nil, newTableRealtime(nil, nil), time.Second)

	if !bw.tryBeginScan() {
		t.Fatal("first scan should acquire the guard")
	}
	if bw.tryBeginScan() {
		t.Fatal("second scan must be rejected while one is in flight")
	}
	bw.endScan()
	if !bw.tryBeginScan() {
		t.Fatal("guard should be free again after endScan")
	}
}

func TestBillWatcherPokeCoalesces(t *testing.T) {
	bw := newBillWatcher(nil, nil, newTableRealtime(nil, nil), time.Second)

	for i := 0; i < 5; i++ {
		bw.poke()
	}
	if len(bw.trigger) != 1 {
		t.Fatalf("expected a single buffered trigger, got %d", len(bw.trigger))
	}
}

func TestBillWatcherDefaultInterval(t *testing.T) {
	bw := newBillWatcher(nil, nil, newTableRealtime(nil, nil), 0)
	if bw.interval != 3*time.Second {
		t.Fatalf("expected 3s default interval, got %v", bw.interval)
	}
}

func TestTableRealtimeSubscribeUnsubscribe(t *testing.T) {
	tr := newTableRealtime(nil, nil)
	client := &wsRealtimeClient{}

	unsubscribe := tr.subscribe("4", client)
	tables := tr.subscribedTables()
	if len(tables) != 1 || tables[0] != 4 {
		t.Fatalf("expected table 4 subscribed, got %v", tables)
	}

	unsubscribe()
	if got := tr.subscribedTables(); len(got) != 0 {
		t.Fatalf("expected no subscriptions after unsubscribe, got %v", got)
	}
}

func TestTableRealtimeIgnoresBlankKey(t *testing.T) {
	tr := newTableRealtime(nil, nil)
	unsubscribe := tr.subscribe("  ", &wsRealtimeClient{})
	unsubscribe()
	if got := tr.subscribedTables(); len(got) != 0 {
		t.Fatalf("blank key must not register, got %v", got)
	}
}
