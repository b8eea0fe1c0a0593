package world

import (
	"fmt"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/google/uuid"
	"github.com/vmihailenco/msgpack/v5"

	"x-rigid/backend/internal/serialize"
)

// SyncPayloadSize - размер пакета синхронизации: 14 float32
const SyncPayloadSize = 14 * 4

// Encode пишет снимок в порядке: поворот, позиция, линейная и угловая скорость, сопротивление
func (s State) Encode(w *serialize.Writer) {
	w.WriteQuat(s.Rotation)
	w.WriteVec3(s.Position)
	w.WriteVec3(s.LinearVelocity)
	w.WriteVec3(s.AngularVelocity)
	w.WriteFloat(s.DragCoefficient)
}

// DecodeState читает снимок, записанный Encode
func DecodeState(r *serialize.Reader) (State, error) {
	var s State
	var err error

	if s.Rotation, err = r.ReadQuat(); err != nil {
		return s, fmt.Errorf("orientation: %w", err)
	}
	if s.Position, err = r.ReadVec3(); err != nil {
		return s, fmt.Errorf("position: %w", err)
	}
	if s.LinearVelocity, err = r.ReadVec3(); err != nil {
		return s, fmt.Errorf("linear velocity: %w", err)
	}
	if s.AngularVelocity, err = r.ReadVec3(); err != nil {
		return s, fmt.Errorf("angular velocity: %w", err)
	}
	if s.DragCoefficient, err = r.ReadFloat(); err != nil {
		return s, fmt.Errorf("drag coefficient: %w", err)
	}
	return s, nil
}

// SyncPayload кодирует опубликованное состояние тела для клиентов
func (rb *RigidBody) SyncPayload() []byte {
	w := serialize.NewWriter(SyncPayloadSize)
	rb.State().Encode(w)
	return w.Bytes()
}

// ApplySyncPayload разбирает пакет синхронизации и ставит в очередь его применение
func (rb *RigidBody) ApplySyncPayload(data []byte) error {
	s, err := DecodeState(serialize.NewReader(data))
	if err != nil {
		return fmt.Errorf("decode sync payload: %w", err)
	}
	return rb.ApplyState(s)
}

// SpawnInfo - содержимое пакета появления тела
type SpawnInfo struct {
	TypeID          int32
	EntityID        int32
	UUID            uuid.UUID
	Rotation        mgl32.Quat
	Position        mgl32.Vec3
	LinearVelocity  mgl32.Vec3
	AngularVelocity mgl32.Vec3
}

// SpawnPayload кодирует пакет появления. Позиция - центр масс,
// то есть опорная точка сущности, поднятая на половину высоты.
func (rb *RigidBody) SpawnPayload() []byte {
	s := rb.State()
	p := rb.entity.Position()

	w := serialize.NewWriter(64)
	w.WriteVarInt(rb.handle.TypeID)
	w.WriteInt(rb.handle.ID)
	w.WriteUUID(rb.handle.UUID)
	w.WriteQuat(s.Rotation)
	w.WriteVec3(mgl32.Vec3{float32(p.X()), float32(p.Y()) + rb.halfHeight, float32(p.Z())})
	w.WriteVec3(s.LinearVelocity)
	w.WriteVec3(s.AngularVelocity)
	return w.Bytes()
}

// DecodeSpawn разбирает пакет появления
func DecodeSpawn(data []byte) (SpawnInfo, error) {
	r := serialize.NewReader(data)
	var info SpawnInfo
	var err error

	if info.TypeID, err = r.ReadVarInt(); err != nil {
		return info, fmt.Errorf("type id: %w", err)
	}
	if info.EntityID, err = r.ReadInt(); err != nil {
		return info, fmt.Errorf("entity id: %w", err)
	}
	if info.UUID, err = r.ReadUUID(); err != nil {
		return info, fmt.Errorf("uuid: %w", err)
	}
	if info.Rotation, err = r.ReadQuat(); err != nil {
		return info, fmt.Errorf("orientation: %w", err)
	}
	if info.Position, err = r.ReadVec3(); err != nil {
		return info, fmt.Errorf("position: %w", err)
	}
	if info.LinearVelocity, err = r.ReadVec3(); err != nil {
		return info, fmt.Errorf("linear velocity: %w", err)
	}
	if info.AngularVelocity, err = r.ReadVec3(); err != nil {
		return info, fmt.Errorf("angular velocity: %w", err)
	}
	return info, nil
}

// Vec - вектор в долговременной записи
type Vec struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
	Z float32 `msgpack:"z" json:"z"`
}

// Quat - кватернион в долговременной записи
type Quat struct {
	X float32 `msgpack:"x" json:"x"`
	Y float32 `msgpack:"y" json:"y"`
	Z float32 `msgpack:"z" json:"z"`
	W float32 `msgpack:"w" json:"w"`
}

// Record - долговременная запись тела, переживает перезапуск хоста
type Record struct {
	Orientation     Quat    `msgpack:"orientation" json:"orientation"`
	Position        Vec     `msgpack:"position" json:"position"`
	LinearVelocity  Vec     `msgpack:"linear_velocity" json:"linear_velocity"`
	AngularVelocity Vec     `msgpack:"angular_velocity" json:"angular_velocity"`
	DragCoefficient float32 `msgpack:"drag_coefficient" json:"drag_coefficient"`
}

func vecOf(v mgl32.Vec3) Vec {
	return Vec{X: v.X(), Y: v.Y(), Z: v.Z()}
}

func (v Vec) vec3() mgl32.Vec3 {
	return mgl32.Vec3{v.X, v.Y, v.Z}
}

// RecordOf переводит снимок в запись
func RecordOf(s State) Record {
	return Record{
		Orientation: Quat{
			X: s.Rotation.V.X(),
			Y: s.Rotation.V.Y(),
			Z: s.Rotation.V.Z(),
			W: s.Rotation.W,
		},
		Position:        vecOf(s.Position),
		LinearVelocity:  vecOf(s.LinearVelocity),
		AngularVelocity: vecOf(s.AngularVelocity),
		DragCoefficient: s.DragCoefficient,
	}
}

// State переводит запись в снимок
func (r Record) State() State {
	return State{
		Rotation:        mgl32.Quat{W: r.Orientation.W, V: mgl32.Vec3{r.Orientation.X, r.Orientation.Y, r.Orientation.Z}},
		Position:        r.Position.vec3(),
		LinearVelocity:  r.LinearVelocity.vec3(),
		AngularVelocity: r.AngularVelocity.vec3(),
		DragCoefficient: r.DragCoefficient,
	}
}

// MarshalRecord кодирует запись в msgpack
func MarshalRecord(r Record) ([]byte, error) {
	data, err := msgpack.Marshal(&r)
	if err != nil {
		return nil, fmt.Errorf("marshal record: %w", err)
	}
	return data, nil
}

// UnmarshalRecord декодирует запись из msgpack
func UnmarshalRecord(data []byte) (Record, error) {
	var r Record
	if err := msgpack.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("unmarshal record: %w", err)
	}
	return r, nil
}

// Record возвращает долговременную запись по опубликованному состоянию
func (rb *RigidBody) Record() Record {
	return RecordOf(rb.State())
}

// ReadRecord восстанавливает состояние тела из записи
func (rb *RigidBody) ReadRecord(r Record) error {
	return rb.ApplyState(r.State())
}
