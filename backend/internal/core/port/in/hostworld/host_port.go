package hostworld

import (
	"github.com/go-gl/mathgl/mgl64"

	"x-rigid/backend/internal/core/domain/entity"
)

// WorldID идентифицирует мир хоста
type WorldID string

// World определяет, что физике нужно от мира хоста.
// BlockAt вызывается из потока физики, реализация должна быть безопасна
// для конкурентного чтения.
type World interface {
	// ID возвращает стабильный идентификатор мира
	ID() WorldID

	// IsClient сообщает, что мир является клиентской копией (не авторитетной)
	IsClient() bool

	// BlockAt возвращает состояние ячейки; для незагруженных ячеек - entity.Air
	BlockAt(pos entity.BlockPos) entity.Block
}

// Entity определяет сущность хоста, которой управляет твердое тело
type Entity interface {
	// Handle возвращает идентичность сущности
	Handle() entity.Handle

	// Name возвращает имя для логов и ошибок
	Name() string

	// World возвращает мир, в котором находится сущность
	World() World

	// Position возвращает опорную точку сущности (низ bounding box)
	Position() mgl64.Vec3

	// Dimensions возвращает ширину и высоту bounding box
	Dimensions() (width, height float32)

	// UpdatePosition выставляет опорную точку сущности
	UpdatePosition(x, y, z float64)

	// SetRotation выставляет рысканье и тангаж в градусах
	SetRotation(yaw, pitch float32)
}

// Hooks - обратные вызовы, которые хост регистрирует для физики
type Hooks interface {
	// OnWorldClosed вызывается при закрытии мира
	OnWorldClosed(w World)

	// OnWorldTicked вызывается после каждого тика мира хоста.
	// keepTicking сообщает, остался ли у хоста бюджет времени на тик.
	OnWorldTicked(w World, keepTicking func() bool) error
}
