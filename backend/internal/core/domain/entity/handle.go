package entity

import (
	"fmt"

	"github.com/google/uuid"
)

// Handle идентифицирует сущность хоста, к которой привязано твердое тело.
// Значение стабильно на протяжении всей симуляции и сравнимо через ==.
type Handle struct {
	// ID - числовой идентификатор экземпляра сущности в мире
	ID int32
	// TypeID - сырой идентификатор типа сущности в реестре хоста
	TypeID int32
	// UUID - стабильный уникальный идентификатор (переживает сохранение)
	UUID uuid.UUID
}

// NewHandle создает хэндл со случайным UUID
func NewHandle(id, typeID int32) Handle {
	return Handle{
		ID:     id,
		TypeID: typeID,
		UUID:   uuid.New(),
	}
}

func (h Handle) String() string {
	return fmt.Sprintf("entity#%d(type=%d, uuid=%s)", h.ID, h.TypeID, h.UUID)
}
