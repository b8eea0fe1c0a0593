package voxel

import (
	"sync"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
)

// ChunkSize - размер чанка по X и Z
const ChunkSize = 16

// ChunkPos - координата чанка
type ChunkPos struct {
	X, Z int
}

// ChunkPosOf возвращает чанк, в котором лежит ячейка
func ChunkPosOf(pos entity.BlockPos) ChunkPos {
	return ChunkPos{X: floorDiv(pos.X, ChunkSize), Z: floorDiv(pos.Z, ChunkSize)}
}

// Chunk - колонна ячеек ChunkSize x height x ChunkSize
type Chunk struct {
	Pos    ChunkPos
	height int
	blocks []entity.Block
}

func newChunk(pos ChunkPos, height int) *Chunk {
	blocks := make([]entity.Block, ChunkSize*ChunkSize*height)
	for i := range blocks {
		blocks[i] = entity.Air
	}
	return &Chunk{Pos: pos, height: height, blocks: blocks}
}

func (c *Chunk) index(x, y, z int) int {
	return (y*ChunkSize+z)*ChunkSize + x
}

// World - воксельный мир хоста, разбитый на чанки.
// BlockAt безопасен для вызова из потока физики.
type World struct {
	id     hostworld.WorldID
	client bool
	height int

	mu     sync.RWMutex
	chunks map[ChunkPos]*Chunk
}

// NewWorld создает пустой мир заданной высоты
func NewWorld(id string, height int) *World {
	if height <= 0 {
		height = 128
	}
	return &World{
		id:     hostworld.WorldID(id),
		height: height,
		chunks: make(map[ChunkPos]*Chunk),
	}
}

// NewClientWorld создает клиентскую копию мира
func NewClientWorld(id string, height int) *World {
	w := NewWorld(id, height)
	w.client = true
	return w
}

func (w *World) ID() hostworld.WorldID { return w.id }
func (w *World) IsClient() bool        { return w.client }
func (w *World) Height() int           { return w.height }

// BlockAt возвращает состояние ячейки; вне загруженных чанков - воздух
func (w *World) BlockAt(pos entity.BlockPos) entity.Block {
	if pos.Y < 0 || pos.Y >= w.height {
		return entity.Air
	}

	cp := ChunkPosOf(pos)
	w.mu.RLock()
	defer w.mu.RUnlock()

	c, ok := w.chunks[cp]
	if !ok {
		return entity.Air
	}
	return c.blocks[c.index(pos.X-cp.X*ChunkSize, pos.Y, pos.Z-cp.Z*ChunkSize)]
}

// SetBlock меняет ячейку, создавая чанк при необходимости.
// Ячейки вне высоты мира игнорируются.
func (w *World) SetBlock(pos entity.BlockPos, b entity.Block) bool {
	if pos.Y < 0 || pos.Y >= w.height {
		return false
	}

	cp := ChunkPosOf(pos)
	w.mu.Lock()
	defer w.mu.Unlock()

	c, ok := w.chunks[cp]
	if !ok {
		c = newChunk(cp, w.height)
		w.chunks[cp] = c
	}
	c.blocks[c.index(pos.X-cp.X*ChunkSize, pos.Y, pos.Z-cp.Z*ChunkSize)] = b
	return true
}

// Fill заполняет параллелепипед между двумя ячейками включительно
func (w *World) Fill(from, to entity.BlockPos, b entity.Block) int {
	n := 0
	for x := min(from.X, to.X); x <= max(from.X, to.X); x++ {
		for y := min(from.Y, to.Y); y <= max(from.Y, to.Y); y++ {
			for z := min(from.Z, to.Z); z <= max(from.Z, to.Z); z++ {
				if w.SetBlock(entity.BlockPos{X: x, Y: y, Z: z}, b) {
					n++
				}
			}
		}
	}
	return n
}

// SurfaceY возвращает высоту первой проходимой ячейки над самым верхним
// твердым блоком колонны, или 0 для пустой колонны
func (w *World) SurfaceY(x, z int) int {
	for y := w.height - 1; y >= 0; y-- {
		if w.BlockAt(entity.BlockPos{X: x, Y: y, Z: z}).Solid() {
			return y + 1
		}
	}
	return 0
}

// ChunkCount возвращает число загруженных чанков
func (w *World) ChunkCount() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return len(w.chunks)
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
