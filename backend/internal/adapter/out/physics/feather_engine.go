package physics

import (
	"fmt"
	"math"

	"github.com/akmonengine/feather/actor"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"

	port "x-rigid/backend/internal/core/port/out/physics"
)

// FeatherEngine - адаптер движка feather к порту физики.
// Интегрирование тел выполняет actor.RigidBody, контакты ищутся по
// мировым AABB, полученным из опорных точек формы.
type FeatherEngine struct{}

// NewFeatherEngine создает адаптер движка feather
func NewFeatherEngine() *FeatherEngine {
	return &FeatherEngine{}
}

// Name возвращает имя движка
func (e *FeatherEngine) Name() string {
	return "feather"
}

// NewWorld создает пустой физический мир
func (e *FeatherEngine) NewWorld(cfg port.WorldConfig) (port.World, error) {
	return &featherWorld{
		gravity: vec64(cfg.Gravity),
		index:   make(map[*featherBody]int),
	}, nil
}

// NewRigidBody создает динамическое тело; масса 0 дает статическое
func (e *FeatherEngine) NewRigidBody(shape port.Shape, mass float32) (port.Body, error) {
	if !shape.Valid() {
		return nil, port.ErrInvalidShape
	}
	if mass < 0 || math.IsNaN(float64(mass)) || math.IsInf(float64(mass), 0) {
		return nil, fmt.Errorf("%w: %v", port.ErrInvalidMass, mass)
	}
	if mass == 0 {
		return newFeatherBody(shape, mgl32.Vec3{}, 0, actor.BodyTypeStatic), nil
	}
	return newFeatherBody(shape, mgl32.Vec3{}, mass, actor.BodyTypeDynamic), nil
}

// NewStaticBody создает неподвижное тело в точке pos
func (e *FeatherEngine) NewStaticBody(shape port.Shape, pos mgl32.Vec3) (port.Body, error) {
	if !shape.Valid() {
		return nil, port.ErrInvalidShape
	}
	return newFeatherBody(shape, pos, 0, actor.BodyTypeStatic), nil
}

// featherBody оборачивает тело feather. Масса хранится как задана,
// плотность для feather выводится из объема бокса.
type featherBody struct {
	rb              *actor.RigidBody
	shape           port.Shape
	mass            float32
	force           mgl32.Vec3
	contactResponse bool
	world           *featherWorld
}

func newFeatherBody(shape port.Shape, pos mgl32.Vec3, mass float32, kind actor.BodyType) *featherBody {
	half := vec64(shape.HalfExtents)
	transform := actor.NewTransform()
	transform.Position = vec64(pos)

	density := 0.0
	if kind == actor.BodyTypeDynamic {
		density = float64(mass) / (8 * half.X() * half.Y() * half.Z())
	}
	return &featherBody{
		rb:              actor.NewRigidBody(transform, &actor.Box{HalfExtents: half}, kind, density),
		shape:           shape,
		mass:            mass,
		contactResponse: true,
	}
}

func (b *featherBody) Position() mgl32.Vec3        { return vec32(b.rb.Transform.Position) }
func (b *featherBody) SetPosition(p mgl32.Vec3)    { b.rb.Transform.Position = vec64(p) }
func (b *featherBody) Rotation() mgl32.Quat        { return quat32(b.rb.Transform.Rotation) }
func (b *featherBody) LinearVelocity() mgl32.Vec3  { return vec32(b.rb.Velocity) }
func (b *featherBody) AngularVelocity() mgl32.Vec3 { return vec32(b.rb.AngularVelocity) }
func (b *featherBody) Mass() float32               { return b.mass }
func (b *featherBody) IsStatic() bool              { return b.rb.BodyType == actor.BodyTypeStatic }
func (b *featherBody) Shape() port.Shape           { return b.shape }
func (b *featherBody) Friction() float32           { return float32(b.rb.Material.DynamicFriction) }
func (b *featherBody) Restitution() float32        { return float32(b.rb.Material.Restitution) }
func (b *featherBody) SetRestitution(r float32)    { b.rb.Material.Restitution = float64(r) }
func (b *featherBody) ContactResponse() bool       { return b.contactResponse }
func (b *featherBody) SetContactResponse(on bool)  { b.contactResponse = on }

// SetFriction задает одинаковое статическое и динамическое трение
func (b *featherBody) SetFriction(f float32) {
	b.rb.Material.StaticFriction = float64(f)
	b.rb.Material.DynamicFriction = float64(f)
}

// SetRotation нормализует кватернион; нулевой заменяется единичным
func (b *featherBody) SetRotation(q mgl32.Quat) {
	r := mgl64.QuatIdent()
	if q.Len() > 0 {
		r = quat64(q.Normalize())
	}
	b.rb.Transform.Rotation = r
	b.rb.Transform.InverseRotation = r.Inverse()
}

func (b *featherBody) SetLinearVelocity(v mgl32.Vec3) {
	if b.IsStatic() {
		return
	}
	b.rb.Velocity = vec64(v)
}

func (b *featherBody) SetAngularVelocity(v mgl32.Vec3) {
	if b.IsStatic() {
		return
	}
	b.rb.AngularVelocity = vec64(v)
}

func (b *featherBody) ApplyCentralForce(f mgl32.Vec3) {
	if b.IsStatic() {
		return
	}
	b.force = b.force.Add(f)
}

func (b *featherBody) ApplyCentralImpulse(impulse mgl32.Vec3) {
	if b.IsStatic() {
		return
	}
	b.rb.Velocity = b.rb.Velocity.Add(vec64(impulse).Mul(1 / float64(b.mass)))
}

func (b *featherBody) invMass() float64 {
	if b.IsStatic() {
		return 0
	}
	return 1 / float64(b.mass)
}

// integrate переносит накопленную силу в скорость и отдает шаг feather
func (b *featherBody) integrate(dt float64, gravity mgl64.Vec3) {
	if b.force != (mgl32.Vec3{}) {
		b.rb.Velocity = b.rb.Velocity.Add(vec64(b.force).Mul(dt / float64(b.mass)))
		b.force = mgl32.Vec3{}
	}
	b.rb.Integrate(dt, gravity)
	b.rb.Transform.InverseRotation = b.rb.Transform.Rotation.Inverse()
}

// bounds возвращает мировой AABB тела по опорным точкам формы
func (b *featherBody) bounds() (lower, upper mgl64.Vec3) {
	for axis := 0; axis < 3; axis++ {
		var dir mgl64.Vec3
		dir[axis] = 1
		upper[axis] = b.rb.SupportWorld(dir)[axis]
		dir[axis] = -1
		lower[axis] = b.rb.SupportWorld(dir)[axis]
	}
	return lower, upper
}

// featherWorld - набор тел feather с общей гравитацией
type featherWorld struct {
	gravity mgl64.Vec3
	bodies  []*featherBody
	index   map[*featherBody]int
	closed  bool
}

func (w *featherWorld) cast(b port.Body) (*featherBody, error) {
	fb, ok := b.(*featherBody)
	if !ok || fb == nil {
		return nil, port.ErrForeignBody
	}
	return fb, nil
}

// AddBody добавляет тело в мир
func (w *featherWorld) AddBody(b port.Body) error {
	if w.closed {
		return port.ErrWorldClosed
	}
	fb, err := w.cast(b)
	if err != nil {
		return err
	}
	if fb.world != nil {
		return port.ErrBodyInWorld
	}
	fb.world = w
	w.index[fb] = len(w.bodies)
	w.bodies = append(w.bodies, fb)
	return nil
}

// RemoveBody удаляет тело, сохраняя порядок остальных
func (w *featherWorld) RemoveBody(b port.Body) error {
	if w.closed {
		return port.ErrWorldClosed
	}
	fb, err := w.cast(b)
	if err != nil {
		return err
	}
	i, ok := w.index[fb]
	if !ok {
		return port.ErrBodyNotInWorld
	}
	copy(w.bodies[i:], w.bodies[i+1:])
	w.bodies[len(w.bodies)-1] = nil
	w.bodies = w.bodies[:len(w.bodies)-1]
	delete(w.index, fb)
	for j := i; j < len(w.bodies); j++ {
		w.index[w.bodies[j]] = j
	}
	fb.world = nil
	return nil
}

// Contains сообщает, что тело находится в этом мире
func (w *featherWorld) Contains(b port.Body) bool {
	fb, ok := b.(*featherBody)
	if !ok {
		return false
	}
	_, found := w.index[fb]
	return found
}

// BodyCount возвращает число тел в мире
func (w *featherWorld) BodyCount() int {
	return len(w.bodies)
}

// Close освобождает мир
func (w *featherWorld) Close() error {
	if w.closed {
		return port.ErrWorldClosed
	}
	for _, b := range w.bodies {
		b.world = nil
	}
	w.bodies = nil
	w.index = nil
	w.closed = true
	return nil
}

// Step интегрирует динамические тела и разрешает контакты
func (w *featherWorld) Step(dt float32) ([]port.Contact, error) {
	if w.closed {
		return nil, port.ErrWorldClosed
	}
	if dt <= 0 {
		return nil, nil
	}

	for _, b := range w.bodies {
		if !b.IsStatic() {
			b.integrate(float64(dt), w.gravity)
		}
	}

	var contacts []port.Contact
	for i, a := range w.bodies {
		if a.IsStatic() || !a.contactResponse {
			continue
		}
		for j, other := range w.bodies {
			if i == j || !other.contactResponse {
				continue
			}
			// пары динамических тел обрабатываются один раз
			if !other.IsStatic() && j < i {
				continue
			}
			normal, depth, ok := overlap(a, other)
			if !ok {
				continue
			}
			resolve(a.rb, other.rb, a.invMass(), other.invMass(), normal, depth)
			contacts = append(contacts, port.Contact{A: a, B: other, Normal: vec32(normal), Depth: float32(depth)})
		}
	}
	return contacts, nil
}

// overlap возвращает ось наименьшего проникновения a в b.
// Нормаль направлена от b к a.
func overlap(a, b *featherBody) (mgl64.Vec3, float64, bool) {
	aMin, aMax := a.bounds()
	bMin, bMax := b.bounds()
	ap, bp := a.rb.Transform.Position, b.rb.Transform.Position

	var (
		normal mgl64.Vec3
		depth  = math.MaxFloat64
	)
	for axis := 0; axis < 3; axis++ {
		d := min(aMax[axis], bMax[axis]) - max(aMin[axis], bMin[axis])
		if d <= 1e-9 {
			return mgl64.Vec3{}, 0, false
		}
		if d < depth {
			depth = d
			normal = mgl64.Vec3{}
			if ap[axis] >= bp[axis] {
				normal[axis] = 1
			} else {
				normal[axis] = -1
			}
		}
	}
	return normal, depth, true
}

// resolve разводит тела и применяет импульс отскока и трения
// по материалам feather
func resolve(a, b *actor.RigidBody, invA, invB float64, normal mgl64.Vec3, depth float64) {
	invSum := invA + invB
	if invSum == 0 {
		return
	}

	a.Transform.Position = a.Transform.Position.Add(normal.Mul(depth * invA / invSum))
	b.Transform.Position = b.Transform.Position.Sub(normal.Mul(depth * invB / invSum))

	rel := a.Velocity.Sub(b.Velocity)
	vn := rel.Dot(normal)
	if vn >= 0 {
		return
	}

	e := a.Material.Restitution * b.Material.Restitution
	jn := -(1 + e) * vn / invSum
	impulse := normal.Mul(jn)
	a.Velocity = a.Velocity.Add(impulse.Mul(invA))
	b.Velocity = b.Velocity.Sub(impulse.Mul(invB))

	tangent := rel.Sub(normal.Mul(vn))
	speed := tangent.Len()
	if speed < 1e-9 {
		return
	}
	jt := speed / invSum
	if static := math.Sqrt(a.Material.StaticFriction * b.Material.StaticFriction); jt > static*jn {
		jt = math.Sqrt(a.Material.DynamicFriction*b.Material.DynamicFriction) * jn
	}
	if jt == 0 {
		return
	}
	fImpulse := tangent.Mul(-jt / speed)
	a.Velocity = a.Velocity.Add(fImpulse.Mul(invA))
	b.Velocity = b.Velocity.Sub(fImpulse.Mul(invB))
}

func vec64(v mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(v[0]), float64(v[1]), float64(v[2])}
}

func vec32(v mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(v[0]), float32(v[1]), float32(v[2])}
}

func quat64(q mgl32.Quat) mgl64.Quat {
	return mgl64.Quat{W: float64(q.W), V: vec64(q.V)}
}

func quat32(q mgl64.Quat) mgl32.Quat {
	return mgl32.Quat{W: float32(q.W), V: vec32(q.V)}
}
