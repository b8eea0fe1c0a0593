package game

import (
	"errors"
	"io"
	"log"
	"testing"
	"time"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
)

// MockSystem для тестирования тикера
type MockSystem struct {
	name     string
	priority int
	calls    int
	err      error
	panicMsg string
	order    *[]string
}

func (ms *MockSystem) Update(deltaTime time.Duration) error {
	ms.calls++
	if ms.order != nil {
		*ms.order = append(*ms.order, ms.name)
	}
	if ms.panicMsg != "" {
		panic(ms.panicMsg)
	}
	return ms.err
}

func (ms *MockSystem) GetName() string  { return ms.name }
func (ms *MockSystem) GetPriority() int { return ms.priority }

type mockWorld struct{ id hostworld.WorldID }

func (w *mockWorld) ID() hostworld.WorldID                    { return w.id }
func (w *mockWorld) IsClient() bool                           { return false }
func (w *mockWorld) BlockAt(pos entity.BlockPos) entity.Block { return entity.Air }

type mockWorlds []hostworld.World

func (m mockWorlds) Worlds() []hostworld.World { return m }

// MockHooks записывает вызовы хуков
type MockHooks struct {
	ticked []hostworld.WorldID
	err    error
}

func (mh *MockHooks) OnWorldClosed(w hostworld.World) {}

func (mh *MockHooks) OnWorldTicked(w hostworld.World, keepTicking func() bool) error {
	mh.ticked = append(mh.ticked, w.ID())
	return mh.err
}

func createTestGameTicker() *GameTicker {
	return NewGameTicker(20, log.New(io.Discard, "[TEST] ", log.LstdFlags))
}

func TestGameTicker_SystemsRunByPriority(t *testing.T) {
	gt := createTestGameTicker()
	var order []string
	gt.RegisterSystem(&MockSystem{name: "late", priority: 100, order: &order})
	gt.RegisterSystem(&MockSystem{name: "early", priority: 1, order: &order})
	gt.RegisterSystem(&MockSystem{name: "middle", priority: 50, order: &order})

	if err := gt.executeTick(time.Now()); err != nil {
		t.Fatalf("executeTick failed: %v", err)
	}

	want := []string{"early", "middle", "late"}
	if len(order) != len(want) {
		t.Fatalf("expected %v, got %v", want, order)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("expected %v, got %v", want, order)
			break
		}
	}
	if gt.GetTickCount() != 1 {
		t.Errorf("expected tick count 1, got %d", gt.GetTickCount())
	}
}

func TestGameTicker_OrdinaryErrorsAreLogged(t *testing.T) {
	gt := createTestGameTicker()
	failing := &MockSystem{name: "failing", err: errors.New("oops")}
	panicking := &MockSystem{name: "panicking", priority: 1, panicMsg: "kaboom"}
	after := &MockSystem{name: "after", priority: 2}
	gt.RegisterSystem(failing)
	gt.RegisterSystem(panicking)
	gt.RegisterSystem(after)

	if err := gt.executeTick(time.Now()); err != nil {
		t.Fatalf("ordinary errors must not stop the tick: %v", err)
	}
	if after.calls != 1 {
		t.Errorf("systems after a failing one should still run")
	}

	stats := gt.perfMonitor.GetSystemsStats()
	if errs := stats["failing"].(map[string]interface{})["errors"].(uint64); errs != 1 {
		t.Errorf("expected 1 recorded error, got %d", errs)
	}
	if errs := stats["panicking"].(map[string]interface{})["errors"].(uint64); errs != 1 {
		t.Errorf("expected panic to be recorded, got %d", errs)
	}
}

func TestGameTicker_ThreadFaultStopsLoop(t *testing.T) {
	gt := createTestGameTicker()
	cause := errors.New("engine exploded")
	gt.RegisterSystem(&MockSystem{name: "physics", err: &ThreadFault{Thread: "physics", Cause: cause}})
	after := &MockSystem{name: "after", priority: 10}
	gt.RegisterSystem(after)

	handled := make(chan error, 1)
	gt.SetFaultHandler(func(err error) { handled <- err })

	if err := gt.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	select {
	case <-gt.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("ticker should stop on a thread fault")
	}

	if !errors.Is(gt.Err(), cause) {
		t.Errorf("expected Err to wrap the cause, got %v", gt.Err())
	}
	select {
	case err := <-handled:
		if !errors.Is(err, cause) {
			t.Errorf("fault handler got %v", err)
		}
	default:
		t.Error("fault handler was not called")
	}
	if after.calls != 0 {
		t.Errorf("systems after the fault must not run in the failed tick")
	}
	if gt.GetStats()["is_running"].(bool) {
		t.Errorf("ticker should report stopped")
	}
}

func TestPhysicsHookSystem_TicksEveryWorld(t *testing.T) {
	hooks := &MockHooks{}
	worlds := mockWorlds{&mockWorld{id: "overworld"}, &mockWorld{id: "nether"}}
	system := NewPhysicsHookSystem(hooks, worlds, nil)

	if err := system.Update(50 * time.Millisecond); err != nil {
		t.Fatalf("Update failed: %v", err)
	}
	if len(hooks.ticked) != 2 || hooks.ticked[0] != "overworld" || hooks.ticked[1] != "nether" {
		t.Errorf("unexpected ticked worlds: %v", hooks.ticked)
	}
}

func TestPhysicsHookSystem_PropagatesFault(t *testing.T) {
	cause := errors.New("boom")
	hooks := &MockHooks{err: &ThreadFault{Thread: "physics", Cause: cause}}
	system := NewPhysicsHookSystem(hooks, mockWorlds{&mockWorld{id: "overworld"}}, nil)

	err := system.Update(50 * time.Millisecond)
	var fault *ThreadFault
	if !errors.As(err, &fault) || !errors.Is(err, cause) {
		t.Errorf("expected wrapped ThreadFault, got %v", err)
	}
	if len(hooks.ticked) != 1 {
		t.Errorf("expected one world ticked, got %d", len(hooks.ticked))
	}
}

func TestGameTicker_KeepTicking(t *testing.T) {
	gt := createTestGameTicker()
	if !gt.KeepTicking() {
		t.Error("KeepTicking should be true outside of a tick")
	}
	gt.tickStart.Store(time.Now().Add(-time.Second).UnixNano())
	if gt.KeepTicking() {
		t.Error("KeepTicking should be false once the tick budget is spent")
	}
}
