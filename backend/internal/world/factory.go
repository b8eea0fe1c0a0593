package world

import (
	"fmt"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"x-rigid/backend/internal/core/domain/entity"
	port "x-rigid/backend/internal/core/port/out/physics"
)

// FrictionClass - класс трения материала блока
type FrictionClass int

const (
	// FrictionStandard - все твердые материалы, не перечисленные явно
	FrictionStandard FrictionClass = iota
	// FrictionSlippery - лед и похожие материалы
	FrictionSlippery
	// FrictionSoft - мед, слизь, песок душ
	FrictionSoft
)

// Коэффициенты трения классов
const (
	StandardFriction float32 = 0.9
	SlipperyFriction float32 = 0.05
	SoftFriction     float32 = 1.5
)

// Coefficient возвращает коэффициент трения класса
func (c FrictionClass) Coefficient() float32 {
	switch c {
	case FrictionSlippery:
		return SlipperyFriction
	case FrictionSoft:
		return SoftFriction
	default:
		return StandardFriction
	}
}

func (c FrictionClass) String() string {
	switch c {
	case FrictionSlippery:
		return "slippery"
	case FrictionSoft:
		return "soft"
	default:
		return "standard"
	}
}

var (
	frictionMu      sync.RWMutex
	frictionClasses = map[entity.Material]FrictionClass{
		entity.MaterialIce:        FrictionSlippery,
		entity.MaterialPackedIce:  FrictionSlippery,
		entity.MaterialBlueIce:    FrictionSlippery,
		entity.MaterialFrostedIce: FrictionSlippery,
		entity.MaterialHoney:      FrictionSoft,
		entity.MaterialSlime:      FrictionSoft,
		entity.MaterialSoulSand:   FrictionSoft,
	}
)

// RegisterFrictionClass задает класс трения для материала
func RegisterFrictionClass(m entity.Material, c FrictionClass) {
	frictionMu.Lock()
	defer frictionMu.Unlock()
	frictionClasses[m] = c
}

// FrictionClassOf возвращает класс трения материала.
// Для незарегистрированных материалов - FrictionStandard.
func FrictionClassOf(m entity.Material) FrictionClass {
	frictionMu.RLock()
	defer frictionMu.RUnlock()

	if c, ok := frictionClasses[m]; ok {
		return c
	}
	return FrictionStandard
}

// FrictionFor возвращает коэффициент трения материала
func FrictionFor(m entity.Material) float32 {
	return FrictionClassOf(m).Coefficient()
}

// BlockColliderBody - статический коллайдер одной ячейки террейна.
// Идентичность определяется только координатой.
type BlockColliderBody struct {
	Pos      entity.BlockPos
	Block    entity.Block
	Friction float32

	body port.Body
}

// Body возвращает тело движка
func (b *BlockColliderBody) Body() port.Body {
	return b.body
}

func (b *BlockColliderBody) String() string {
	return fmt.Sprintf("BlockColliderBody[pos=(%d, %d, %d), material=%s, friction=%.2f]",
		b.Pos.X, b.Pos.Y, b.Pos.Z, b.Block.Material, b.Friction)
}

// ColliderFactory создает коллайдеры блоков
type ColliderFactory struct {
	engine port.Engine
}

// NewColliderFactory создает фабрику коллайдеров
func NewColliderFactory(engine port.Engine) *ColliderFactory {
	return &ColliderFactory{engine: engine}
}

// Create создает коллайдер для ячейки. Для проходимых блоков и блоков
// без формы возвращает nil.
func (f *ColliderFactory) Create(pos entity.BlockPos, block entity.Block) (*BlockColliderBody, error) {
	if !block.Solid() || block.Shape.IsEmpty() {
		return nil, nil
	}

	bounds := block.Shape.Offset(pos.Vec())
	center := bounds.Center()
	half := bounds.Size().Mul(0.5)

	body, err := f.engine.NewStaticBody(
		port.BoxShape(float32(half.X()), float32(half.Y()), float32(half.Z())),
		mgl32.Vec3{float32(center.X()), float32(center.Y()), float32(center.Z())},
	)
	if err != nil {
		return nil, fmt.Errorf("create collider at %v: %w", pos, err)
	}

	friction := FrictionFor(block.Material)
	body.SetFriction(friction)

	return &BlockColliderBody{
		Pos:      pos,
		Block:    block,
		Friction: friction,
		body:     body,
	}, nil
}
