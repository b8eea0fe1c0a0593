package physics

import (
	"errors"

	"github.com/go-gl/mathgl/mgl32"
)

// Ошибки движка
var (
	ErrWorldClosed    = errors.New("physics world is closed")
	ErrBodyNotInWorld = errors.New("body is not in this physics world")
	ErrBodyInWorld    = errors.New("body is already in a physics world")
	ErrForeignBody    = errors.New("body was created by another engine")
	ErrInvalidMass    = errors.New("mass must be non-negative")
	ErrInvalidShape   = errors.New("shape must have positive half extents")
)

// Shape описывает коллизионную форму тела.
// Сейчас поддерживаются только боксы.
type Shape struct {
	HalfExtents mgl32.Vec3
}

// BoxShape создает форму-бокс по полуразмерам
func BoxShape(hx, hy, hz float32) Shape {
	return Shape{HalfExtents: mgl32.Vec3{hx, hy, hz}}
}

// Valid сообщает, что все полуразмеры положительные
func (s Shape) Valid() bool {
	return s.HalfExtents.X() > 0 && s.HalfExtents.Y() > 0 && s.HalfExtents.Z() > 0
}

// Body - тело внутри физического мира.
// Методы не потокобезопасны: вызываются только из потока, шагающего мир.
type Body interface {
	Position() mgl32.Vec3
	SetPosition(p mgl32.Vec3)

	Rotation() mgl32.Quat
	SetRotation(q mgl32.Quat)

	LinearVelocity() mgl32.Vec3
	SetLinearVelocity(v mgl32.Vec3)

	AngularVelocity() mgl32.Vec3
	SetAngularVelocity(v mgl32.Vec3)

	// ApplyCentralForce накапливает силу до следующего шага
	ApplyCentralForce(f mgl32.Vec3)

	// ApplyCentralImpulse сразу меняет линейную скорость на impulse/mass
	ApplyCentralImpulse(impulse mgl32.Vec3)

	// Mass возвращает массу; 0 означает статическое тело
	Mass() float32
	IsStatic() bool
	Shape() Shape

	Friction() float32
	SetFriction(f float32)

	Restitution() float32
	SetRestitution(r float32)

	// ContactResponse - участвует ли тело в разрешении коллизий
	ContactResponse() bool
	SetContactResponse(enabled bool)
}

// Contact - контакт, найденный за шаг
type Contact struct {
	A, B Body
	// Normal направлена от B к A
	Normal mgl32.Vec3
	Depth  float32
}

// Other возвращает второе тело контакта относительно b
func (c Contact) Other(b Body) Body {
	if c.A == b {
		return c.B
	}
	return c.A
}

// WorldConfig задает параметры физического мира
type WorldConfig struct {
	Gravity mgl32.Vec3
}

// World - физический мир движка
type World interface {
	// AddBody добавляет тело; повторное добавление - ошибка
	AddBody(b Body) error

	// RemoveBody удаляет тело из мира
	RemoveBody(b Body) error

	Contains(b Body) bool
	BodyCount() int

	// Step продвигает симуляцию на dt секунд и возвращает найденные контакты
	Step(dt float32) ([]Contact, error)

	// Close освобождает ресурсы мира; последующие вызовы возвращают ErrWorldClosed
	Close() error
}

// Engine определяет интерфейс физического движка
type Engine interface {
	// Name возвращает имя движка для логов
	Name() string

	NewWorld(cfg WorldConfig) (World, error)

	// NewRigidBody создает динамическое тело с центром в начале координат
	NewRigidBody(shape Shape, mass float32) (Body, error)

	// NewStaticBody создает неподвижное тело с центром в pos
	NewStaticBody(shape Shape, pos mgl32.Vec3) (Body, error)
}
