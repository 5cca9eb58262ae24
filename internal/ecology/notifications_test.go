package ecology

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// mockNotifier records delivered events and can fail a set number of times.
type mockNotifier struct {
	id       string
	mu       sync.Mutex
	events   []StepEvent
	failures int
	closed   bool
}

func newMockNotifier(id string) *mockNotifier {
	return &mockNotifier{id: id}
}

func (m *mockNotifier) ID() string   { return m.id }
func (m *mockNotifier) Type() string { return "mock" }

func (m *mockNotifier) Notify(ctx context.Context, event StepEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failures > 0 {
		m.failures--
		return errors.New("mock failure")
	}
	m.events = append(m.events, event)
	return nil
}

func (m *mockNotifier) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *mockNotifier) received() []StepEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]StepEvent(nil), m.events...)
}

func (m *mockNotifier) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// waitForEvents polls until the notifier has seen n events.
func waitForEvents(t *testing.T, m *mockNotifier, n int) []StepEvent {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if events := m.received(); len(events) >= n {
			return events
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Timed out waiting for %d events, got %d", n, len(m.received()))
	return nil
}

func TestNotificationManager_Register(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	if err := nm.RegisterNotifier(nil); err == nil {
		t.Error("Expected error for nil notifier")
	}
	if err := nm.RegisterNotifier(newMockNotifier("")); err == nil {
		t.Error("Expected error for empty ID")
	}
	if err := nm.RegisterNotifier(newMockNotifier("b")); err != nil {
		t.Fatalf("RegisterNotifier failed: %v", err)
	}
	if err := nm.RegisterNotifier(newMockNotifier("a")); err != nil {
		t.Fatalf("RegisterNotifier failed: %v", err)
	}
	if err := nm.RegisterNotifier(newMockNotifier("a")); err == nil {
		t.Error("Expected error for duplicate ID")
	}

	ids := nm.ListNotifiers()
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("Expected [a b], got %v", ids)
	}
	if _, ok := nm.GetNotifier("a"); !ok {
		t.Error("Expected to find notifier a")
	}
}

func TestNotificationManager_Unregister(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()

	m := newMockNotifier("hook")
	nm.RegisterNotifier(m)

	if err := nm.UnregisterNotifier("hook"); err != nil {
		t.Fatalf("UnregisterNotifier failed: %v", err)
	}
	if !m.isClosed() {
		t.Error("Expected unregistered notifier to be closed")
	}
	if err := nm.UnregisterNotifier("hook"); err == nil {
		t.Error("Expected error for missing notifier")
	}
}

func TestNotificationManager_EnqueueDelivers(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()
	m := newMockNotifier("m")
	nm.RegisterNotifier(m)

	nm.Enqueue(StepEvent{SimulationID: "s", Type: EventStep, Step: 1}, []string{"m"})
	nm.Enqueue(StepEvent{SimulationID: "s", Type: EventStep, Step: 2}, []string{"m"})

	events := waitForEvents(t, m, 2)
	if events[0].Step != 1 || events[1].Step != 2 {
		t.Errorf("Expected events in order, got steps %d, %d", events[0].Step, events[1].Step)
	}
}

func TestNotificationManager_Retries(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()
	nm.backoff = time.Millisecond

	m := newMockNotifier("flaky")
	m.failures = 2
	nm.RegisterNotifier(m)

	nm.Enqueue(StepEvent{Step: 7}, []string{"flaky"})

	events := waitForEvents(t, m, 1)
	if events[0].Step != 7 {
		t.Errorf("Expected step 7, got %d", events[0].Step)
	}
}

func TestNotificationManager_NotifySync(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()
	m := newMockNotifier("m")
	nm.RegisterNotifier(m)

	if err := nm.Notify(context.Background(), StepEvent{Step: 1}, []string{"m"}); err != nil {
		t.Errorf("Notify failed: %v", err)
	}
	if len(m.received()) != 1 {
		t.Error("Expected synchronous delivery")
	}
	if err := nm.Notify(context.Background(), StepEvent{Step: 1}, []string{"missing"}); err == nil {
		t.Error("Expected error for missing notifier")
	}
}

func TestNotificationManager_Close(t *testing.T) {
	nm := NewNotificationManager()
	m := newMockNotifier("m")
	nm.RegisterNotifier(m)

	if err := nm.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if !m.isClosed() {
		t.Error("Expected notifiers closed")
	}
	if err := nm.Close(); err != nil {
		t.Errorf("Expected second Close to be a no-op, got %v", err)
	}
	// enqueue after close must not panic
	nm.Enqueue(StepEvent{}, []string{"m"})
}

func TestStepEvent_JSON(t *testing.T) {
	event := StepEvent{
		SimulationID: "sim",
		Type:         EventHalted,
		Step:         4,
		Counts:       PopulationStats{Grazer: 3},
		Width:        2,
		Height:       1,
		Cells:        "G.",
	}
	data, err := event.JSON()
	if err != nil {
		t.Fatalf("JSON failed: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatal(err)
	}
	if decoded["type"] != "halted" || decoded["cells"] != "G." {
		t.Errorf("Unexpected JSON: %s", data)
	}
	counts := decoded["counts"].(map[string]any)
	if counts["grazer"] != float64(3) {
		t.Errorf("Expected grazer count 3, got %v", counts["grazer"])
	}
}

func TestSimulation_PublishesEvents(t *testing.T) {
	nm := NewNotificationManager()
	defer nm.Close()
	all := newMockNotifier("all")
	other := newMockNotifier("other")
	nm.RegisterNotifier(all)
	nm.RegisterNotifier(other)

	sim := newEmptySimulation(t, 5, 5, noBreeding())
	mustInsert(t, sim, Agent{Kind: Grazer, Age: 1, Location: NewLocation(0, 0)})
	mustInsert(t, sim, Agent{Kind: MidPredator, Age: 1, Hunger: 6, Location: NewLocation(4, 4)})
	mustInsert(t, sim, Agent{Kind: ApexPredator, Age: ApexPredator.Params().MaxAge - 1, Hunger: 6, Location: NewLocation(0, 4)})
	sim.SetNotificationManager(nm)
	sim.Subscribe("all")

	sim.RunFor(10)

	events := waitForEvents(t, all, 2)
	if events[0].Type != EventStep || events[0].Step != 1 || !events[0].Viable {
		t.Errorf("Unexpected first event: %+v", events[0])
	}
	halted := events[1]
	if halted.Type != EventHalted || halted.Step != 2 || halted.Viable {
		t.Errorf("Expected halted event at step 2, got %+v", halted)
	}
	if halted.SimulationID != "test" || halted.Width != 5 || len(halted.Cells) != 25 {
		t.Errorf("Unexpected event payload: %+v", halted)
	}
	if halted.Counts.Count(ApexPredator) != 0 {
		t.Errorf("Expected no apex predators in halted event, got %d", halted.Counts.Count(ApexPredator))
	}

	time.Sleep(20 * time.Millisecond)
	if len(other.received()) != 0 {
		t.Error("Expected unsubscribed notifier to receive nothing")
	}
}
