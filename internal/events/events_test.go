package events

import (
	"testing"
	"time"
)

func TestPublishInvokesSubscribersInOrder(t *testing.T) {
	bus := New()
	var order []int

	bus.Subscribe(TaskStarted, func(Event) { order = append(order, 1) })
	bus.Subscribe(TaskStarted, func(Event) { order = append(order, 2) })
	bus.Subscribe(TaskStarted, func(Event) { order = append(order, 3) })

	bus.Publish(Event{Type: TaskStarted, Timestamp: time.Now()})

	if len(order) != 3 || order[0] != 1 || order[1] != 2 || order[2] != 3 {
		t.Errorf("subscribers invoked out of order: %v", order)
	}
}

func TestPublishOnlyInvokesMatchingType(t *testing.T) {
	bus := New()
	called := false
	bus.Subscribe(TaskFailed, func(Event) { called = true })

	bus.Publish(Event{Type: TaskStarted, Timestamp: time.Now()})

	if called {
		t.Error("handler for TaskFailed was invoked by a TaskStarted publish")
	}
}

func TestUnsubscribeRemovesHandler(t *testing.T) {
	bus := New()
	calls := 0
	sub := bus.Subscribe(TaskStarted, func(Event) { calls++ })

	bus.Publish(Event{Type: TaskStarted})
	bus.Unsubscribe(sub)
	bus.Publish(Event{Type: TaskStarted})

	if calls != 1 {
		t.Errorf("calls = %d, want 1 after unsubscribe", calls)
	}
}

func TestUnsubscribeOnlyRemovesTargetedSubscription(t *testing.T) {
	bus := New()
	calls1, calls2 := 0, 0
	sub1 := bus.Subscribe(TaskStarted, func(Event) { calls1++ })
	bus.Subscribe(TaskStarted, func(Event) { calls2++ })

	bus.Unsubscribe(sub1)
	bus.Publish(Event{Type: TaskStarted})

	if calls1 != 0 {
		t.Errorf("calls1 = %d, want 0", calls1)
	}
	if calls2 != 1 {
		t.Errorf("calls2 = %d, want 1", calls2)
	}
}

func TestPanicInHandlerDoesNotBlockOthers(t *testing.T) {
	bus := New()
	secondCalled := false
	bus.Subscribe(TaskStarted, func(Event) { panic("boom") })
	bus.Subscribe(TaskStarted, func(Event) { secondCalled = true })

	bus.Publish(Event{Type: TaskStarted})

	if !secondCalled {
		t.Error("second subscriber was not invoked after the first panicked")
	}
}

func TestHistoryFiltersByTypeAndLimit(t *testing.T) {
	bus := New()
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: TaskStarted})
	}
	bus.Publish(Event{Type: TaskFailed})

	all := bus.History(TaskStarted, 0)
	if len(all) != 5 {
		t.Errorf("History(TaskStarted, 0) returned %d events, want 5", len(all))
	}

	limited := bus.History(TaskStarted, 2)
	if len(limited) != 2 {
		t.Errorf("History(TaskStarted, 2) returned %d events, want 2", len(limited))
	}

	failed := bus.History(TaskFailed, 0)
	if len(failed) != 1 {
		t.Errorf("History(TaskFailed, 0) returned %d events, want 1", len(failed))
	}
}

func TestHistoryRingTrimsOldestEvents(t *testing.T) {
	bus := NewWithHistory(3)
	for i := 0; i < 5; i++ {
		bus.Publish(Event{Type: TaskStarted, Source: string(rune('a' + i))})
	}

	got := bus.History(TaskStarted, 0)
	if len(got) != 3 {
		t.Fatalf("History returned %d events, want 3 after ring trim", len(got))
	}
	if got[0].Source != "c" || got[2].Source != "e" {
		t.Errorf("ring did not retain the most recent events: %+v", got)
	}
}

func TestClearHistory(t *testing.T) {
	bus := New()
	bus.Publish(Event{Type: TaskStarted})
	bus.ClearHistory()

	if got := bus.History(TaskStarted, 0); len(got) != 0 {
		t.Errorf("History after ClearHistory = %v, want empty", got)
	}
}
