package voxel

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
)

// Типы сущностей демо-хоста
const (
	TypeCrate   int32 = 1
	TypeBarrel  int32 = 2
	TypeBoulder int32 = 3
)

// Entity - сущность демо-хоста с bounding box
type Entity struct {
	handle entity.Handle
	name   string
	world  *World
	width  float32
	height float32

	mu         sync.RWMutex
	pos        mgl64.Vec3
	yaw, pitch float32
}

// NewEntity создает сущность с опорной точкой pos (низ bounding box)
func NewEntity(w *World, handle entity.Handle, name string, pos mgl64.Vec3, width, height float32) *Entity {
	return &Entity{
		handle: handle,
		name:   name,
		world:  w,
		width:  width,
		height: height,
		pos:    pos,
	}
}

func (e *Entity) Handle() entity.Handle  { return e.handle }
func (e *Entity) Name() string           { return e.name }
func (e *Entity) World() hostworld.World { return e.world }

func (e *Entity) Dimensions() (float32, float32) {
	return e.width, e.height
}

func (e *Entity) Position() mgl64.Vec3 {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.pos
}

func (e *Entity) UpdatePosition(x, y, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pos = mgl64.Vec3{x, y, z}
}

func (e *Entity) SetRotation(yaw, pitch float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.yaw, e.pitch = yaw, pitch
}

// Rotation возвращает рысканье и тангаж в градусах
func (e *Entity) Rotation() (yaw, pitch float32) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.yaw, e.pitch
}
