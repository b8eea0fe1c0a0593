package world

import (
	"fmt"
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	port "x-rigid/backend/internal/core/port/out/physics"
	"x-rigid/backend/internal/physics"
)

// ShapeFactory строит форму тела по сущности
type ShapeFactory func(e hostworld.Entity) port.Shape

// BoxFromDimensions строит бокс по bounding box сущности
func BoxFromDimensions(e hostworld.Entity) port.Shape {
	w, h := e.Dimensions()
	return port.BoxShape(w/2, h/2, w/2)
}

// RigidBodyOptions - параметры регистрации твердого тела
type RigidBodyOptions struct {
	Shape           ShapeFactory
	Mass            float32
	DragCoefficient float32
	Friction        float32
	Restitution     float32
	NoClip          bool
}

// DefaultRigidBodyOptions возвращает параметры из текущей конфигурации физики
func DefaultRigidBodyOptions() RigidBodyOptions {
	cfg := physics.GetPhysicsConfig()
	return RigidBodyOptions{
		Shape:           BoxFromDimensions,
		Mass:            float32(cfg.DefaultMass),
		DragCoefficient: float32(cfg.DefaultDragCoefficient),
		Friction:        float32(cfg.DefaultFriction),
		Restitution:     float32(cfg.DefaultRestitution),
	}
}

// State - опубликованный снимок кинематики тела
type State struct {
	Rotation        mgl32.Quat
	Position        mgl32.Vec3
	LinearVelocity  mgl32.Vec3
	AngularVelocity mgl32.Vec3
	DragCoefficient float32
}

// RigidBody связывает сущность хоста с телом физического движка.
//
// Тело движка трогает только поток физики. Хост читает опубликованный
// снимок State и пару поворотов для интерполяции.
type RigidBody struct {
	entity     hostworld.Entity
	handle     entity.Handle
	space      *Space
	manager    *Manager
	body       port.Body
	halfHeight float32

	// поток физики
	drag   float32
	noClip bool

	mu           sync.RWMutex
	state        State
	noClipState  bool
	prevRotation mgl32.Quat
	tickRotation mgl32.Quat
	ticks        uint64
}

func newRigidBody(e hostworld.Entity, space *Space, body port.Body, opts RigidBodyOptions) *RigidBody {
	_, h := e.Dimensions()
	rb := &RigidBody{
		entity:     e,
		handle:     e.Handle(),
		space:      space,
		body:       body,
		halfHeight: h / 2,
		drag:       opts.DragCoefficient,
		noClip:     opts.NoClip,
	}

	p := e.Position()
	body.SetPosition(mgl32.Vec3{float32(p.X()), float32(p.Y()) + rb.halfHeight, float32(p.Z())})
	body.SetFriction(opts.Friction)
	body.SetRestitution(opts.Restitution)
	body.SetContactResponse(!opts.NoClip)

	rot := body.Rotation()
	rb.prevRotation = rot
	rb.tickRotation = rot
	rb.noClipState = opts.NoClip
	rb.state = rb.capture()
	return rb
}

// Entity возвращает сущность хоста
func (rb *RigidBody) Entity() hostworld.Entity {
	return rb.entity
}

// Handle возвращает идентичность тела
func (rb *RigidBody) Handle() entity.Handle {
	return rb.handle
}

// Space возвращает пространство мира тела
func (rb *RigidBody) Space() *Space {
	return rb.space
}

// Body возвращает тело движка. Только для потока физики.
func (rb *RigidBody) Body() port.Body {
	return rb.body
}

// HalfHeight возвращает половину высоты bounding box сущности
func (rb *RigidBody) HalfHeight() float32 {
	return rb.halfHeight
}

// Equal сравнивает тела по сущности
func (rb *RigidBody) Equal(other *RigidBody) bool {
	return other != nil && rb.handle == other.handle
}

// State возвращает последний опубликованный снимок
func (rb *RigidBody) State() State {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.state
}

// NoClip сообщает, отключен ли отклик на контакты
func (rb *RigidBody) NoClip() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.noClipState
}

// Rotations возвращает пару поворотов для интерполяции
func (rb *RigidBody) Rotations() (prev, tick mgl32.Quat) {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.prevRotation, rb.tickRotation
}

// InterpolatedRotation возвращает поворот между двумя последними тиками хоста
func (rb *RigidBody) InterpolatedRotation(partial float32) mgl32.Quat {
	prev, tick := rb.Rotations()
	return mgl32.QuatSlerp(prev, tick, mgl32.Clamp(partial, 0, 1))
}

// SetDragCoefficient меняет коэффициент сопротивления в потоке физики
func (rb *RigidBody) SetDragCoefficient(drag float32) error {
	if drag < 0 || math.IsNaN(float64(drag)) {
		return fmt.Errorf("%w: %v", ErrInvalidDrag, drag)
	}
	rb.space.execute(func() error {
		rb.drag = drag
		rb.publish()
		return nil
	})
	return nil
}

// SetNoClip включает или выключает прохождение сквозь террейн и тела
func (rb *RigidBody) SetNoClip(noClip bool) {
	rb.space.execute(func() error {
		rb.noClip = noClip
		rb.body.SetContactResponse(!noClip)
		rb.publish()
		return nil
	})
}

// ApplyState переносит снимок в тело движка
func (rb *RigidBody) ApplyState(s State) error {
	if s.DragCoefficient < 0 {
		return fmt.Errorf("%w: %v", ErrInvalidDrag, s.DragCoefficient)
	}
	rb.space.execute(func() error {
		rb.applyState(s)
		return nil
	})
	return nil
}

func (rb *RigidBody) applyState(s State) {
	rb.body.SetRotation(s.Rotation.Normalize())
	rb.body.SetPosition(s.Position)
	rb.body.SetLinearVelocity(s.LinearVelocity)
	rb.body.SetAngularVelocity(s.AngularVelocity)
	rb.drag = s.DragCoefficient
	rb.publish()
}

// ApplyForce добавляет силу к следующему шагу
func (rb *RigidBody) ApplyForce(force mgl32.Vec3) {
	rb.space.execute(func() error {
		rb.body.ApplyCentralForce(force)
		return nil
	})
}

// ApplyImpulse мгновенно меняет импульс тела
func (rb *RigidBody) ApplyImpulse(impulse mgl32.Vec3) {
	rb.space.execute(func() error {
		rb.body.ApplyCentralImpulse(impulse)
		rb.publish()
		return nil
	})
}

// step - обработчик шага тела, вызывается пространством после интеграции
func (rb *RigidBody) step(dt float32, cfg *physics.PhysicsConfig, events *Events) {
	events.fireStartStep(rb, dt)

	if cfg.AirResistanceEnabled {
		impulse := airResistanceImpulse(rb.body, rb.drag, float32(cfg.AirDensity), dt)
		if impulse.Len() > 0 {
			rb.body.ApplyCentralImpulse(impulse)
		}
	}

	events.fireEndStep(rb, dt)
}

func (rb *RigidBody) capture() State {
	return State{
		Rotation:        rb.body.Rotation(),
		Position:        rb.body.Position(),
		LinearVelocity:  rb.body.LinearVelocity(),
		AngularVelocity: rb.body.AngularVelocity(),
		DragCoefficient: rb.drag,
	}
}

// Live читает состояние прямо из движка. Только для потока физики,
// например из наблюдателей шага.
func (rb *RigidBody) Live() State {
	return rb.capture()
}

// publish делает состояние тела движка видимым для хоста
func (rb *RigidBody) publish() {
	s := rb.capture()
	rb.mu.Lock()
	rb.state = s
	rb.noClipState = rb.noClip
	rb.mu.Unlock()
}

// Tick вызывается в горутине хоста один раз за тик мира
func (rb *RigidBody) Tick() {
	if !rb.entity.World().IsClient() {
		rb.sync()
	}

	rb.mu.Lock()
	rb.prevRotation = rb.tickRotation
	rb.tickRotation = rb.state.Rotation
	pos := rb.state.Position
	rot := rb.tickRotation
	rb.mu.Unlock()

	rb.entity.UpdatePosition(float64(pos.X()), float64(pos.Y()-rb.halfHeight), float64(pos.Z()))
	yaw, pitch := yawPitch(rot)
	rb.entity.SetRotation(yaw, pitch)
}

func (rb *RigidBody) sync() {
	every := uint64(max(physics.GetPhysicsConfig().SyncEveryTicks, 1))

	rb.mu.Lock()
	rb.ticks++
	due := rb.ticks%every == 0
	rb.mu.Unlock()

	if !due || rb.manager == nil {
		return
	}
	if syncer := rb.manager.Syncer(); syncer != nil {
		syncer.SyncBody(rb)
	}
}

func (rb *RigidBody) String() string {
	s := rb.State()
	return fmt.Sprintf("RigidBody[%s, name=%q, pos=(%.2f, %.2f, %.2f), vel=(%.2f, %.2f, %.2f), drag=%.3f, noclip=%t]",
		rb.handle, rb.entity.Name(),
		s.Position.X(), s.Position.Y(), s.Position.Z(),
		s.LinearVelocity.X(), s.LinearVelocity.Y(), s.LinearVelocity.Z(),
		s.DragCoefficient, rb.NoClip())
}

// yawPitch переводит поворот в углы сущности хоста (градусы)
func yawPitch(q mgl32.Quat) (yaw, pitch float32) {
	f := q.Rotate(mgl32.Vec3{0, 0, 1})
	yaw = mgl32.RadToDeg(float32(math.Atan2(float64(-f.X()), float64(f.Z()))))
	pitch = mgl32.RadToDeg(float32(-math.Asin(float64(mgl32.Clamp(f.Y(), -1, 1)))))
	return yaw, pitch
}
