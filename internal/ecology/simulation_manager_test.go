package ecology

import (
	"testing"
	"time"
)

func TestSimulationManager_CreateGetDelete(t *testing.T) {
	sm := NewSimulationManager()

	sim, err := sm.CreateSimulation("alpha", emptyConfig(5, 5))
	if err != nil {
		t.Fatalf("CreateSimulation failed: %v", err)
	}
	if sim.ID() != "alpha" {
		t.Errorf("Expected ID alpha, got %s", sim.ID())
	}
	if _, err := sm.CreateSimulation("alpha", emptyConfig(5, 5)); err == nil {
		t.Error("Expected error for duplicate ID")
	}

	got, ok := sm.GetSimulation("alpha")
	if !ok || got != sim {
		t.Error("Expected to get the created simulation")
	}

	if err := sm.DeleteSimulation("alpha"); err != nil {
		t.Fatalf("DeleteSimulation failed: %v", err)
	}
	if _, ok := sm.GetSimulation("alpha"); ok {
		t.Error("Expected simulation to be deleted")
	}
	if err := sm.DeleteSimulation("alpha"); err == nil {
		t.Error("Expected error deleting a missing simulation")
	}
}

func TestSimulationManager_InvalidConfig(t *testing.T) {
	sm := NewSimulationManager()
	cfg := emptyConfig(5, 5)
	cfg.Viability.Mode = "maybe"
	if _, err := sm.CreateSimulation("bad", cfg); err == nil {
		t.Error("Expected error for invalid config")
	}
	if len(sm.ListSimulations()) != 0 {
		t.Error("Expected failed create not to register a simulation")
	}
}

func TestSimulationManager_List(t *testing.T) {
	sm := NewSimulationManager()
	for _, id := range []SimulationID{"gamma", "alpha", "beta"} {
		if _, err := sm.CreateSimulation(id, emptyConfig(3, 3)); err != nil {
			t.Fatal(err)
		}
	}
	ids := sm.ListSimulations()
	want := []SimulationID{"alpha", "beta", "gamma"}
	if len(ids) != len(want) {
		t.Fatalf("Expected %d simulations, got %d", len(want), len(ids))
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("Expected %s at %d, got %s", want[i], i, ids[i])
		}
	}
}

func TestSimulationManager_ReplaceStopsOld(t *testing.T) {
	sm := NewSimulationManager()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Seed = 10, 10, 4
	old, err := sm.CreateSimulation("main", cfg)
	if err != nil {
		t.Fatal(err)
	}
	old.Run(time.Hour)

	replacement, err := sm.ReplaceSimulation("main", emptyConfig(6, 6))
	if err != nil {
		t.Fatalf("ReplaceSimulation failed: %v", err)
	}
	if old.IsRunning() {
		t.Error("Expected old simulation to be stopped")
	}
	got, _ := sm.GetSimulation("main")
	if got != replacement || got.Width() != 6 {
		t.Error("Expected the replacement to be registered")
	}
}

func TestSimulationManager_Isolation(t *testing.T) {
	sm := NewSimulationManager()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Seed = 12, 12, 9
	a, _ := sm.CreateSimulation("a", cfg)
	b, _ := sm.CreateSimulation("b", cfg)

	a.RunFor(3)

	if b.StepCount() != 0 {
		t.Errorf("Expected b untouched, got step %d", b.StepCount())
	}
	if a.StepCount() == 0 {
		t.Error("Expected a to advance")
	}
}

func TestSimulationManager_StopAll(t *testing.T) {
	sm := NewSimulationManager()
	cfg := DefaultConfig()
	cfg.Width, cfg.Height, cfg.Seed = 10, 10, 4
	a, _ := sm.CreateSimulation("a", cfg)
	b, _ := sm.CreateSimulation("b", cfg)
	a.Run(time.Hour)
	b.Run(time.Hour)

	sm.StopAll()

	if a.IsRunning() || b.IsRunning() {
		t.Error("Expected all simulations stopped")
	}
}
