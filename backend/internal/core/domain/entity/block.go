package entity

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Material представляет материал блока
type Material string

// Материалы, которые знает демо-хост. Хост может использовать любые другие
// значения: классификация трения тотальна по всем материалам.
const (
	MaterialAir        Material = "air"
	MaterialStone      Material = "stone"
	MaterialDirt       Material = "dirt"
	MaterialGrass      Material = "grass"
	MaterialSand       Material = "sand"
	MaterialWood       Material = "wood"
	MaterialGlass      Material = "glass"
	MaterialLeaves     Material = "leaves"
	MaterialWater      Material = "water"
	MaterialLava       Material = "lava"
	MaterialTallGrass  Material = "tall_grass"
	MaterialIce        Material = "ice"
	MaterialPackedIce  Material = "packed_ice"
	MaterialBlueIce    Material = "blue_ice"
	MaterialFrostedIce Material = "frosted_ice"
	MaterialHoney      Material = "honey"
	MaterialSlime      Material = "slime"
	MaterialSoulSand   Material = "soul_sand"
)

// BlockPos - целочисленная координата ячейки мира
type BlockPos struct {
	X, Y, Z int
}

// Offset возвращает координату, сдвинутую на (dx, dy, dz)
func (p BlockPos) Offset(dx, dy, dz int) BlockPos {
	return BlockPos{X: p.X + dx, Y: p.Y + dy, Z: p.Z + dz}
}

// Vec возвращает минимальный угол ячейки
func (p BlockPos) Vec() mgl64.Vec3 {
	return mgl64.Vec3{float64(p.X), float64(p.Y), float64(p.Z)}
}

// BlockPosOf возвращает ячейку, содержащую точку
func BlockPosOf(v mgl64.Vec3) BlockPos {
	return BlockPos{
		X: int(math.Floor(v.X())),
		Y: int(math.Floor(v.Y())),
		Z: int(math.Floor(v.Z())),
	}
}

// Box - выровненный по осям параллелепипед в координатах мира
type Box struct {
	Min, Max mgl64.Vec3
}

// NewBox создает Box, упорядочивая углы
func NewBox(x1, y1, z1, x2, y2, z2 float64) Box {
	return Box{
		Min: mgl64.Vec3{math.Min(x1, x2), math.Min(y1, y2), math.Min(z1, z2)},
		Max: mgl64.Vec3{math.Max(x1, x2), math.Max(y1, y2), math.Max(z1, z2)},
	}
}

// CubeAround возвращает куб с полуразмером r вокруг начала координат
func CubeAround(r float64) Box {
	return NewBox(-r, -r, -r, r, r, r)
}

// FullCube - форма полного блока в локальных координатах ячейки
var FullCube = NewBox(0, 0, 0, 1, 1, 1)

// Offset сдвигает Box на вектор
func (b Box) Offset(v mgl64.Vec3) Box {
	return Box{Min: b.Min.Add(v), Max: b.Max.Add(v)}
}

// IsEmpty сообщает, что у Box нет объема
func (b Box) IsEmpty() bool {
	return b.Max.X() <= b.Min.X() || b.Max.Y() <= b.Min.Y() || b.Max.Z() <= b.Min.Z()
}

// Size возвращает размеры по осям
func (b Box) Size() mgl64.Vec3 {
	return b.Max.Sub(b.Min)
}

// Center возвращает центр
func (b Box) Center() mgl64.Vec3 {
	return b.Min.Add(b.Max).Mul(0.5)
}

// Contains сообщает, лежит ли точка внутри (граница Max не включается)
func (b Box) Contains(v mgl64.Vec3) bool {
	return v.X() >= b.Min.X() && v.X() < b.Max.X() &&
		v.Y() >= b.Min.Y() && v.Y() < b.Max.Y() &&
		v.Z() >= b.Min.Z() && v.Z() < b.Max.Z()
}

// Block - состояние ячейки, как его отдает хост
type Block struct {
	Material Material
	// Passable - сквозь блок могут проходить сущности (воздух, вода, трава)
	Passable bool
	// Shape - коллизионная форма в локальных координатах ячейки, пустая если коллизии нет
	Shape Box
}

// Air - пустая ячейка
var Air = Block{Material: MaterialAir, Passable: true}

// SolidBlock создает полный непроходимый блок из материала
func SolidBlock(m Material) Block {
	return Block{Material: m, Shape: FullCube}
}

// Solid сообщает, что блок участвует в коллизиях
func (b Block) Solid() bool {
	return !b.Passable
}
