package eventbus

import "testing"

func TestSubscribeReceivesMatchingKind(t *testing.T) {
	b := New()
	var got *WalletUtxoUpdate
	b.Subscribe(KindWalletUtxoUpdate, func(ev Event) {
		got = ev.WalletUtxoUpdate
	})
	b.Emit(Event{Kind: KindWalletUtxoUpdate, WalletUtxoUpdate: &WalletUtxoUpdate{ChainID: 1, Created: 3}})
	if got == nil || got.Created != 3 {
		t.Fatalf("expected delivery, got %+v", got)
	}
}

func TestSubscribeIgnoresOtherKinds(t *testing.T) {
	b := New()
	called := false
	b.Subscribe(KindError, func(ev Event) { called = true })
	b.Emit(Event{Kind: KindDebug, Debug: &DebugEvent{Message: "hi"}})
	if called {
		t.Fatal("handler for KindError should not fire for KindDebug")
	}
}

func TestSubscribeAllReceivesEverything(t *testing.T) {
	b := New()
	count := 0
	b.SubscribeAll(func(ev Event) { count++ })
	b.Emit(Event{Kind: KindCoreReady})
	b.Emit(Event{Kind: KindError, Error: &ErrorEvent{Code: "SYNC"}})
	if count != 2 {
		t.Fatalf("expected 2 deliveries, got %d", count)
	}
}

func TestEmitErrorHelper(t *testing.T) {
	b := New()
	var got *ErrorEvent
	b.Subscribe(KindError, func(ev Event) { got = ev.Error })
	b.EmitError("SYNC", "entry.ListMemos", "boom")
	if got == nil || got.Code != "SYNC" || got.Stage != "entry.ListMemos" {
		t.Fatalf("unexpected error event: %+v", got)
	}
}

func TestMultipleHandlersAllFire(t *testing.T) {
	b := New()
	n := 0
	b.Subscribe(KindDebug, func(Event) { n++ })
	b.Subscribe(KindDebug, func(Event) { n++ })
	b.Emit(Event{Kind: KindDebug})
	if n != 2 {
		t.Fatalf("expected both handlers to fire, got %d calls", n)
	}
}
