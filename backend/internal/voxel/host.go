package voxel

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/google/uuid"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
)

// Host - демо-хост: набор миров и их сущностей
type Host struct {
	mu       sync.RWMutex
	worlds   []*World
	entities map[hostworld.WorldID][]*Entity
	nextID   atomic.Int32
	logger   *log.Logger
}

// NewHost создает пустой хост
func NewHost(logger *log.Logger) *Host {
	if logger == nil {
		logger = log.Default()
	}
	return &Host{
		entities: make(map[hostworld.WorldID][]*Entity),
		logger:   logger,
	}
}

// AddWorld открывает мир
func (h *Host) AddWorld(w *World) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, existing := range h.worlds {
		if existing.ID() == w.ID() {
			return
		}
	}
	h.worlds = append(h.worlds, w)
	h.logger.Printf("[Host] world %s opened", w.ID())
}

// World возвращает открытый мир по идентификатору
func (h *Host) World(id hostworld.WorldID) (*World, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, w := range h.worlds {
		if w.ID() == id {
			return w, true
		}
	}
	return nil, false
}

// Worlds возвращает открытые миры в порядке открытия
func (h *Host) Worlds() []hostworld.World {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]hostworld.World, len(h.worlds))
	for i, w := range h.worlds {
		out[i] = w
	}
	return out
}

// Spawn создает сущность в мире
func (h *Host) Spawn(w *World, typeID int32, name string, pos mgl64.Vec3, width, height float32) *Entity {
	e := NewEntity(w, entity.NewHandle(h.nextID.Add(1), typeID), name, pos, width, height)

	h.mu.Lock()
	h.entities[w.ID()] = append(h.entities[w.ID()], e)
	h.mu.Unlock()
	return e
}

// SpawnStable создает сущность с UUID, выведенным из мира и имени.
// Такая сущность получает тот же UUID после перезапуска хоста, и ее запись
// находится в хранилище. Имя должно быть уникальным в мире.
func (h *Host) SpawnStable(w *World, typeID int32, name string, pos mgl64.Vec3, width, height float32) *Entity {
	handle := entity.Handle{
		ID:     h.nextID.Add(1),
		TypeID: typeID,
		UUID:   uuid.NewSHA1(uuid.NameSpaceOID, []byte(string(w.ID())+"/"+name)),
	}
	e := NewEntity(w, handle, name, pos, width, height)

	h.mu.Lock()
	h.entities[w.ID()] = append(h.entities[w.ID()], e)
	h.mu.Unlock()
	return e
}

// Entities возвращает сущности мира
func (h *Host) Entities(id hostworld.WorldID) []*Entity {
	h.mu.RLock()
	defer h.mu.RUnlock()
	list := h.entities[id]
	out := make([]*Entity, len(list))
	copy(out, list)
	return out
}

// Despawn удаляет сущность из мира
func (h *Host) Despawn(e *Entity) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	id := e.world.ID()
	list := h.entities[id]
	for i, existing := range list {
		if existing == e {
			h.entities[id] = append(list[:i:i], list[i+1:]...)
			return true
		}
	}
	return false
}

// CloseWorld закрывает мир и сообщает об этом хукам
func (h *Host) CloseWorld(id hostworld.WorldID, hooks hostworld.Hooks) bool {
	h.mu.Lock()
	var closed *World
	for i, w := range h.worlds {
		if w.ID() == id {
			closed = w
			h.worlds = append(h.worlds[:i:i], h.worlds[i+1:]...)
			break
		}
	}
	delete(h.entities, id)
	h.mu.Unlock()

	if closed == nil {
		return false
	}
	if hooks != nil {
		hooks.OnWorldClosed(closed)
	}
	h.logger.Printf("[Host] world %s closed", id)
	return true
}
