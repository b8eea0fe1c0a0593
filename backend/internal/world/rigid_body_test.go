package world

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	"x-rigid/backend/internal/physics"
)

func spinningBody(t *testing.T) (*RigidBody, *fakeScheduler, *fakeEntity) {
	t.Helper()
	withConfig(t, func(cfg *physics.PhysicsConfig) {
		cfg.Gravity = 0
		cfg.AirResistanceEnabled = false
	})
	m, sched := newTestManager()
	e := newFakeEntity(newFakeWorld("sky"), 1, mgl64.Vec3{0, 20, 0})
	rb := register(t, m, e, nil)
	sched.flush(t)

	if err := rb.ApplyState(State{
		Rotation:        mgl32.QuatIdent(),
		Position:        mgl32.Vec3{0, 20.5, 0},
		AngularVelocity: mgl32.Vec3{0, 3, 0},
	}); err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}
	sched.flush(t)
	return rb, sched, e
}

func TestInterpolationContinuousAcrossTicks(t *testing.T) {
	rb, sched, _ := spinningBody(t)

	sched.step(t)
	rb.Tick()

	for i := 0; i < 5; i++ {
		end := rb.InterpolatedRotation(1)

		sched.step(t)
		sched.step(t)
		rb.Tick()

		start := rb.InterpolatedRotation(0)
		if !start.ApproxEqualThreshold(end, 1e-4) {
			t.Fatalf("tick %d: rotation jumped from %v to %v", i, end, start)
		}

		prev, tick := rb.Rotations()
		if !rb.InterpolatedRotation(0).ApproxEqualThreshold(prev, 1e-4) {
			t.Errorf("tick %d: partial 0 is not prev rotation", i)
		}
		if !rb.InterpolatedRotation(1).ApproxEqualThreshold(tick, 1e-4) {
			t.Errorf("tick %d: partial 1 is not tick rotation", i)
		}
		mid := rb.InterpolatedRotation(0.5)
		if mid.ApproxEqualThreshold(prev, 1e-4) || mid.ApproxEqualThreshold(tick, 1e-4) {
			t.Errorf("tick %d: midpoint %v equals an endpoint", i, mid)
		}
		if l := mid.Len(); math.Abs(float64(l)-1) > 1e-4 {
			t.Errorf("tick %d: midpoint not unit: %v", i, l)
		}
	}
}

func TestInterpolationClampsPartial(t *testing.T) {
	rb, sched, _ := spinningBody(t)
	sched.step(t)
	rb.Tick()

	if !rb.InterpolatedRotation(7).ApproxEqualThreshold(rb.InterpolatedRotation(1), 1e-4) {
		t.Error("partial > 1 not clamped")
	}
	if !rb.InterpolatedRotation(-3).ApproxEqualThreshold(rb.InterpolatedRotation(0), 1e-4) {
		t.Error("partial < 0 not clamped")
	}
}

func TestTickShiftsRotationPair(t *testing.T) {
	rb, sched, _ := spinningBody(t)

	sched.step(t)
	rb.Tick()
	_, first := rb.Rotations()

	sched.step(t)
	rb.Tick()
	prev, second := rb.Rotations()

	if prev != first {
		t.Errorf("prev = %v, want previous tick rotation %v", prev, first)
	}
	if second != rb.State().Rotation {
		t.Errorf("tick = %v, want published rotation %v", second, rb.State().Rotation)
	}
}

func TestTickWritesEntityPose(t *testing.T) {
	withConfig(t, func(cfg *physics.PhysicsConfig) { cfg.Gravity = -10 })
	m, sched := newTestManager()
	e := newFakeEntity(newFakeWorld("sky"), 1, mgl64.Vec3{3, 20, -2})
	e.height = 2
	rb := register(t, m, e, nil)

	sched.step(t)
	rb.Tick()

	s := rb.State()
	got := e.Position()
	if math.Abs(got.Y()-float64(s.Position.Y()-1)) > 1e-6 {
		t.Errorf("entity y = %v, want center %v minus half height", got.Y(), s.Position.Y())
	}
	if got.Y() >= 20 {
		t.Errorf("entity did not fall: y = %v", got.Y())
	}
	if got.X() != 3 || got.Z() != -2 {
		t.Errorf("entity moved sideways: %v", got)
	}
	if e.updates != 1 {
		t.Errorf("UpdatePosition called %d times, want 1", e.updates)
	}
}

func TestYawPitch(t *testing.T) {
	tests := []struct {
		name      string
		q         mgl32.Quat
		wantYaw   float32
		wantPitch float32
	}{
		{"identity", mgl32.QuatIdent(), 0, 0},
		{"quarter turn", mgl32.QuatRotate(math.Pi/2, mgl32.Vec3{0, 1, 0}), -90, 0},
		{"looking down", mgl32.QuatRotate(math.Pi/4, mgl32.Vec3{1, 0, 0}), 0, 45},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			yaw, pitch := yawPitch(tt.q)
			if math.Abs(float64(yaw-tt.wantYaw)) > 1e-3 || math.Abs(float64(pitch-tt.wantPitch)) > 1e-3 {
				t.Errorf("yawPitch() = (%v, %v), want (%v, %v)", yaw, pitch, tt.wantYaw, tt.wantPitch)
			}
		})
	}
}

func TestTickSyncsOnServerOnly(t *testing.T) {
	withConfig(t, func(cfg *physics.PhysicsConfig) { cfg.SyncEveryTicks = 2 })
	m, sched := newTestManager()
	syncer := &countingSyncer{}
	m.SetSyncer(syncer)

	server := register(t, m, newFakeEntity(newFakeWorld("server"), 1, mgl64.Vec3{}), nil)
	clientWorld := newFakeWorld("client")
	clientWorld.client = true
	client := register(t, m, newFakeEntity(clientWorld, 2, mgl64.Vec3{}), nil)
	sched.flush(t)

	for i := 0; i < 6; i++ {
		server.Tick()
		client.Tick()
	}

	if got := syncer.count(); got != 3 {
		t.Errorf("synced %d times, want 3 (every 2nd of 6 ticks)", got)
	}
	for _, rb := range syncer.synced {
		if rb != server {
			t.Errorf("client body was synced: %v", rb)
		}
	}
}

func TestSetDragCoefficient(t *testing.T) {
	m, sched := newTestManager()
	rb := register(t, m, newFakeEntity(newFakeWorld("sky"), 1, mgl64.Vec3{}), nil)
	sched.flush(t)

	if err := rb.SetDragCoefficient(-1); !errors.Is(err, ErrInvalidDrag) {
		t.Errorf("SetDragCoefficient(-1) error = %v, want ErrInvalidDrag", err)
	}
	if err := rb.SetDragCoefficient(0.25); err != nil {
		t.Fatalf("SetDragCoefficient() error = %v", err)
	}
	if rb.State().DragCoefficient == 0.25 {
		t.Error("drag changed before the task ran")
	}
	sched.flush(t)
	if got := rb.State().DragCoefficient; got != 0.25 {
		t.Errorf("DragCoefficient = %v, want 0.25", got)
	}
}

func TestRigidBodyStringAndEqual(t *testing.T) {
	m, _ := newTestManager()
	w := newFakeWorld("sky")
	e := newFakeEntity(w, 42, mgl64.Vec3{1, 2, 3})
	rb := register(t, m, e, nil)
	other := register(t, m, newFakeEntity(w, 43, mgl64.Vec3{}), nil)

	s := rb.String()
	for _, part := range []string{"RigidBody[", "entity#42", `name="crate"`, "pos=(1.00, 2.50, 3.00)"} {
		if !strings.Contains(s, part) {
			t.Errorf("String() = %s, missing %q", s, part)
		}
	}

	if !rb.Equal(rb) || rb.Equal(other) || rb.Equal(nil) {
		t.Error("Equal() must compare by entity")
	}
}
