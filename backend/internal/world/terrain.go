package world

import (
	"fmt"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	port "x-rigid/backend/internal/core/port/out/physics"
)

// TerrainLoader держит в физическом мире коллайдеры блоков вокруг
// динамических тел. Работает только в потоке физики.
type TerrainLoader struct {
	world   hostworld.World
	physics port.World
	factory *ColliderFactory

	colliders map[entity.BlockPos]*BlockColliderBody
	byBody    map[port.Body]*BlockColliderBody
	toKeep    map[entity.BlockPos]struct{}
}

// NewTerrainLoader создает загрузчик террейна для мира
func NewTerrainLoader(w hostworld.World, pw port.World, factory *ColliderFactory) *TerrainLoader {
	return &TerrainLoader{
		world:     w,
		physics:   pw,
		factory:   factory,
		colliders: make(map[entity.BlockPos]*BlockColliderBody),
		byBody:    make(map[port.Body]*BlockColliderBody),
		toKeep:    make(map[entity.BlockPos]struct{}),
	}
}

// Maintain загружает блоки в окне вокруг каждого тела, затем удаляет
// коллайдеры, которые не попали ни в одно окно. Окно задается относительно
// центра масс тела.
func (l *TerrainLoader) Maintain(bodies []port.Body, window entity.Box) error {
	for _, body := range bodies {
		p := body.Position()
		center := mgl64.Vec3{float64(p.X()), float64(p.Y()), float64(p.Z())}
		if err := l.load(window.Offset(center)); err != nil {
			return err
		}
	}
	return l.purge()
}

// load добавляет коллайдеры для твердых ячеек области
func (l *TerrainLoader) load(area entity.Box) error {
	minX, minY, minZ := floorInt(area.Min.X()), floorInt(area.Min.Y()), floorInt(area.Min.Z())

	for x := minX; float64(x) < area.Max.X(); x++ {
		for y := minY; float64(y) < area.Max.Y(); y++ {
			for z := minZ; float64(z) < area.Max.Z(); z++ {
				pos := entity.BlockPos{X: x, Y: y, Z: z}
				if err := l.loadCell(pos); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func (l *TerrainLoader) loadCell(pos entity.BlockPos) error {
	if _, kept := l.toKeep[pos]; kept {
		return nil
	}

	block := l.world.BlockAt(pos)
	existing, present := l.colliders[pos]

	// Блок в ячейке сменился - старый коллайдер больше не годится
	if present && existing.Block != block {
		if err := l.remove(existing); err != nil {
			return err
		}
		present = false
	}

	if !present {
		collider, err := l.factory.Create(pos, block)
		if err != nil {
			return err
		}
		if collider == nil {
			return nil
		}
		if err := l.physics.AddBody(collider.body); err != nil {
			return fmt.Errorf("add collider %v: %w", pos, err)
		}
		l.colliders[pos] = collider
		l.byBody[collider.body] = collider
	}

	l.toKeep[pos] = struct{}{}
	return nil
}

// purge удаляет коллайдеры, не отмеченные в текущем проходе, и очищает отметки
func (l *TerrainLoader) purge() error {
	for pos, collider := range l.colliders {
		if _, kept := l.toKeep[pos]; kept {
			continue
		}
		if err := l.remove(collider); err != nil {
			return err
		}
	}
	clear(l.toKeep)
	return nil
}

func (l *TerrainLoader) remove(collider *BlockColliderBody) error {
	if err := l.physics.RemoveBody(collider.body); err != nil {
		return fmt.Errorf("remove collider %v: %w", collider.Pos, err)
	}
	delete(l.colliders, collider.Pos)
	delete(l.byBody, collider.body)
	return nil
}

// Collider возвращает коллайдер блока по телу движка
func (l *TerrainLoader) Collider(body port.Body) (*BlockColliderBody, bool) {
	c, ok := l.byBody[body]
	return c, ok
}

// ColliderAt возвращает коллайдер по координате
func (l *TerrainLoader) ColliderAt(pos entity.BlockPos) (*BlockColliderBody, bool) {
	c, ok := l.colliders[pos]
	return c, ok
}

// Count возвращает число загруженных коллайдеров
func (l *TerrainLoader) Count() int {
	return len(l.colliders)
}

// Positions возвращает координаты загруженных коллайдеров
func (l *TerrainLoader) Positions() []entity.BlockPos {
	positions := make([]entity.BlockPos, 0, len(l.colliders))
	for pos := range l.colliders {
		positions = append(positions, pos)
	}
	return positions
}

// reset забывает все коллайдеры без обращения к физическому миру
func (l *TerrainLoader) reset() {
	clear(l.colliders)
	clear(l.byBody)
	clear(l.toKeep)
}

func floorInt(v float64) int {
	return int(math.Floor(v))
}
