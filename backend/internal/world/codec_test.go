package world

import (
	"errors"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/vmihailenco/msgpack/v5"

	"x-rigid/backend/internal/serialize"
)

func sampleState() State {
	return State{
		Rotation:        mgl32.QuatRotate(0.7, mgl32.Vec3{0, 1, 0}),
		Position:        mgl32.Vec3{1.5, 64.25, -3},
		LinearVelocity:  mgl32.Vec3{0.5, -2, 0.125},
		AngularVelocity: mgl32.Vec3{0, 1.5, -0.25},
		DragCoefficient: 0.3,
	}
}

func TestSyncPayloadRoundTrip(t *testing.T) {
	m, sched := newTestManager()
	w := newFakeWorld("overworld")
	src := register(t, m, newFakeEntity(w, 1, mgl64.Vec3{}), nil)
	dst := register(t, m, newFakeEntity(w, 2, mgl64.Vec3{9, 9, 9}), nil)
	sched.flush(t)

	if err := src.ApplyState(sampleState()); err != nil {
		t.Fatalf("ApplyState() error = %v", err)
	}
	sched.flush(t)

	payload := src.SyncPayload()
	if len(payload) != SyncPayloadSize {
		t.Fatalf("len(payload) = %d, want %d", len(payload), SyncPayloadSize)
	}

	if err := dst.ApplySyncPayload(payload); err != nil {
		t.Fatalf("ApplySyncPayload() error = %v", err)
	}
	sched.flush(t)

	got, want := dst.State(), src.State()
	if !got.Rotation.ApproxEqualThreshold(want.Rotation, 1e-6) {
		t.Errorf("Rotation = %v, want %v", got.Rotation, want.Rotation)
	}
	if got.Position != want.Position || got.LinearVelocity != want.LinearVelocity ||
		got.AngularVelocity != want.AngularVelocity || got.DragCoefficient != want.DragCoefficient {
		t.Errorf("State = %+v, want %+v", got, want)
	}
}

func TestSyncPayloadLayout(t *testing.T) {
	s := sampleState()
	w := serialize.NewWriter(SyncPayloadSize)
	s.Encode(w)

	r := serialize.NewReader(w.Bytes())
	x, _ := r.ReadFloat()
	y, _ := r.ReadFloat()
	z, _ := r.ReadFloat()
	qw, _ := r.ReadFloat()
	if x != s.Rotation.V.X() || y != s.Rotation.V.Y() || z != s.Rotation.V.Z() || qw != s.Rotation.W {
		t.Errorf("orientation = (%v, %v, %v, %v), want x, y, z, w of %v", x, y, z, qw, s.Rotation)
	}
	px, _ := r.ReadFloat()
	if px != s.Position.X() {
		t.Errorf("position x = %v, want %v", px, s.Position.X())
	}
}

func TestApplySyncPayloadShort(t *testing.T) {
	m, _ := newTestManager()
	rb := register(t, m, newFakeEntity(newFakeWorld("overworld"), 1, mgl64.Vec3{}), nil)

	err := rb.ApplySyncPayload(make([]byte, SyncPayloadSize-1))
	if !errors.Is(err, serialize.ErrShortBuffer) {
		t.Errorf("ApplySyncPayload() error = %v, want ErrShortBuffer", err)
	}
}

func TestSpawnPayload(t *testing.T) {
	m, sched := newTestManager()
	e := newFakeEntity(newFakeWorld("overworld"), 300, mgl64.Vec3{1, 2, 3})
	e.height = 2
	rb := register(t, m, e, nil)
	sched.flush(t)

	payload, err := m.SpawnPayload(e)
	if err != nil {
		t.Fatalf("SpawnPayload() error = %v", err)
	}

	info, err := DecodeSpawn(payload)
	if err != nil {
		t.Fatalf("DecodeSpawn() error = %v", err)
	}
	h := rb.Handle()
	if info.TypeID != h.TypeID || info.EntityID != h.ID || info.UUID != h.UUID {
		t.Errorf("identity = (%d, %d, %s), want %s", info.TypeID, info.EntityID, info.UUID, h)
	}
	if want := (mgl32.Vec3{1, 3, 3}); info.Position != want {
		t.Errorf("Position = %v, want %v raised by half height", info.Position, want)
	}
	if info.Rotation != mgl32.QuatIdent() {
		t.Errorf("Rotation = %v, want identity", info.Rotation)
	}
}

func TestSpawnPayloadUnregistered(t *testing.T) {
	m, _ := newTestManager()
	e := newFakeEntity(newFakeWorld("overworld"), 5, mgl64.Vec3{})

	_, err := m.SpawnPayload(e)
	if !errors.Is(err, ErrNotRegistered) {
		t.Fatalf("SpawnPayload() error = %v, want ErrNotRegistered", err)
	}
	var rbErr *RigidBodyError
	if !errors.As(err, &rbErr) || rbErr.Handle != e.Handle() {
		t.Errorf("error = %v, want RigidBodyError for %s", err, e.Handle())
	}
}

func TestDecodeSpawnTruncated(t *testing.T) {
	m, _ := newTestManager()
	e := newFakeEntity(newFakeWorld("overworld"), 5, mgl64.Vec3{})
	rb := register(t, m, e, nil)

	payload := rb.SpawnPayload()
	if _, err := DecodeSpawn(payload[:len(payload)-2]); !errors.Is(err, serialize.ErrShortBuffer) {
		t.Errorf("DecodeSpawn() error = %v, want ErrShortBuffer", err)
	}
}

func TestRecordRoundTrip(t *testing.T) {
	rec := RecordOf(sampleState())

	data, err := MarshalRecord(rec)
	if err != nil {
		t.Fatalf("MarshalRecord() error = %v", err)
	}
	got, err := UnmarshalRecord(data)
	if err != nil {
		t.Fatalf("UnmarshalRecord() error = %v", err)
	}
	if got != rec {
		t.Errorf("record = %+v, want %+v", got, rec)
	}
	if got.State() != sampleState() {
		t.Errorf("State() = %+v, want %+v", got.State(), sampleState())
	}

	var raw map[string]interface{}
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		t.Fatalf("msgpack.Unmarshal() error = %v", err)
	}
	for _, key := range []string{"orientation", "position", "linear_velocity", "angular_velocity", "drag_coefficient"} {
		if _, ok := raw[key]; !ok {
			t.Errorf("record has no %q key", key)
		}
	}
}

func TestReadRecordRestoresBody(t *testing.T) {
	m, sched := newTestManager()
	rb := register(t, m, newFakeEntity(newFakeWorld("overworld"), 1, mgl64.Vec3{}), nil)
	sched.flush(t)

	if err := rb.ReadRecord(RecordOf(sampleState())); err != nil {
		t.Fatalf("ReadRecord() error = %v", err)
	}
	sched.flush(t)

	got := rb.Record()
	want := RecordOf(sampleState())
	if got.Position != want.Position || got.DragCoefficient != want.DragCoefficient {
		t.Errorf("Record() = %+v, want %+v", got, want)
	}
}

func TestUnmarshalRecordGarbage(t *testing.T) {
	if _, err := UnmarshalRecord([]byte{0xc1}); err == nil {
		t.Error("UnmarshalRecord() expected error for invalid msgpack")
	}
}
