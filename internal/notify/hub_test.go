package notify

import (
	"sync"
	"testing"
	"time"
)

func TestHubBroadcastReachesAttached(t *testing.T) {
	hub := NewHub()

	subAlice := hub.Attach("alice")
	subBob := hub.Attach("bob")

	hub.Broadcast("order.created", []byte(`{"order_id":"order-1"}`))

	for name, sub := range map[string]*Subscription{"alice": subAlice, "bob": subBob} {
		select {
		case event := <-sub.Events():
			if event.Name != "order.created" {
				t.Fatalf("%s: unexpected event name %q", name, event.Name)
			}
			if string(event.Payload) != `{"order_id":"order-1"}` {
				t.Fatalf("%s: unexpected payload %q", name, event.Payload)
			}
		case <-time.After(time.Second):
			t.Fatalf("%s: broadcast event not delivered", name)
		}
	}
}

func TestHubNotifyTargetsSingleUser(t *testing.T) {
	hub := NewHub()

	subAlice := hub.Attach("alice")
	subBob := hub.Attach("bob")

	hub.Notify("alice", "order.delivered", []byte(`{"order_id":"order-2"}`))

	select {
	case event := <-subAlice.Events():
		if event.Name != "order.delivered" {
			t.Fatalf("unexpected event name %q", event.Name)
		}
	case <-time.After(time.Second):
		t.Fatal("targeted event not delivered")
	}

	select {
	case event := <-subBob.Events():
		t.Fatalf("bob should not receive targeted event, got %q", event.Name)
	default:
	}
}

func TestHubDetachStopsDelivery(t *testing.T) {
	hub := NewHub()

	sub := hub.Attach("alice")
	hub.Detach(sub)

	if hub.IsOnline("alice") {
		t.Fatal("detached user should not be online")
	}

	// Канал закрыт после Detach
	if _, ok := <-sub.Events(); ok {
		t.Fatal("expected closed events channel")
	}

	// Broadcast после Detach не должен паниковать
	hub.Broadcast("order.created", nil)

	// Повторный Detach безопасен
	hub.Detach(sub)
}

func TestHubOnline(t *testing.T) {
	hub := NewHub()

	if got := hub.Online(); len(got) != 0 {
		t.Fatalf("expected empty online list, got %v", got)
	}

	subBob := hub.Attach("bob")
	hub.Attach("alice")
	hub.Attach("alice") // второе подключение того же пользователя

	online := hub.Online()
	if len(online) != 2 {
		t.Fatalf("expected 2 online users, got %v", online)
	}
	if online[0] != "alice" || online[1] != "bob" {
		t.Fatalf("expected sorted [alice bob], got %v", online)
	}

	if !hub.IsOnline("alice") {
		t.Fatal("alice should be online")
	}

	hub.Detach(subBob)
	if hub.IsOnline("bob") {
		t.Fatal("bob should be offline after detach")
	}
}

func TestHubSlowSubscriberDoesNotBlock(t *testing.T) {
	hub := NewHub()
	hub.bufferSize = 1

	sub := hub.Attach("alice")

	done := make(chan struct{})
	go func() {
		defer close(done)
		hub.Broadcast("event.first", nil)
		hub.Broadcast("event.second", nil) // буфер полон, событие отбрасывается
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("broadcast blocked on slow subscriber")
	}

	event := <-sub.Events()
	if event.Name != "event.first" {
		t.Fatalf("expected first event to survive, got %q", event.Name)
	}

	select {
	case event := <-sub.Events():
		t.Fatalf("second event should be dropped, got %q", event.Name)
	default:
	}
}

func TestHubConcurrentAttachBroadcast(t *testing.T) {
	hub := NewHub()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			sub := hub.Attach("user")
			hub.Detach(sub)
		}()
		go func() {
			defer wg.Done()
			hub.Broadcast("order.created", nil)
		}()
	}
	wg.Wait()
}
