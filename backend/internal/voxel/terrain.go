package voxel

import (
	"log"
	"math"
	"math/rand"

	"x-rigid/backend/internal/core/domain/entity"
)

// TerrainGenerator строит рельеф по фрактальному шуму с горами
type TerrainGenerator struct {
	Seed      int64
	MinHeight int
	MaxHeight int
	Mountains int
	// IceBelow - колонны не выше этой высоты покрываются льдом
	IceBelow int
}

// DefaultTerrainGenerator возвращает генератор для демо-мира
func DefaultTerrainGenerator(seed int64) TerrainGenerator {
	return TerrainGenerator{
		Seed:      seed,
		MinHeight: 4,
		MaxHeight: 20,
		Mountains: 20,
		IceBelow:  6,
	}
}

// Heightmap возвращает высоты колонн области w x d (индекс z*w+x)
func (g TerrainGenerator) Heightmap(w, d int) []int {
	heights := make([]int, w*d)
	if w <= 0 || d <= 0 {
		return heights
	}

	rng := rand.New(rand.NewSource(g.Seed))

	// Октавы фрактального шума
	scales := []float64{1.0, 0.5, 0.25, 0.125, 0.0625}
	amplitudes := []float64{0.5, 0.25, 0.125, 0.0625, 0.03125}

	heightRange := float64(g.MaxHeight - g.MinHeight)

	type mountain struct{ x, z, height, radius float64 }
	mountains := make([]mountain, g.Mountains)
	for i := range mountains {
		mountains[i] = mountain{
			x:      rng.Float64() * float64(w),
			z:      rng.Float64() * float64(d),
			height: 0.1 + math.Abs(noise2D(float64(i)*0.1, 0.5)),
			radius: 5.0 + 15.0*math.Abs(noise2D(0.5, float64(i)*0.1)),
		}
	}

	offset := float64(g.Seed%1000) * 0.37
	for j := 0; j < d; j++ {
		for i := 0; i < w; i++ {
			nx := float64(i) / float64(max(w-1, 1))
			nz := float64(j) / float64(max(d-1, 1))

			elevation := 0.0
			for layer := range scales {
				elevation += smoothNoise(nx*scales[layer]*10.0+offset, nz*scales[layer]*10.0+offset) * amplitudes[layer]
			}
			elevation = (elevation + 0.5) * 0.5

			for _, m := range mountains {
				dx := float64(i) - m.x
				dz := float64(j) - m.z
				distance := math.Sqrt(dx*dx + dz*dz)
				if distance < m.radius {
					falloff := math.Pow(1.0-distance/m.radius, 2.0)
					elevation += m.height * falloff * 0.8
				}
			}

			h := int(math.Round(elevation*heightRange)) + g.MinHeight
			heights[j*w+i] = min(max(h, g.MinHeight), g.MaxHeight)
		}
	}
	return heights
}

// Generate заполняет область мира от (originX, originZ) размером w x d
// и возвращает карту высот
func (g TerrainGenerator) Generate(world *World, originX, originZ, w, d int) []int {
	heights := g.Heightmap(w, d)
	for j := 0; j < d; j++ {
		for i := 0; i < w; i++ {
			top := min(heights[j*w+i], world.Height()) - 1
			x, z := originX+i, originZ+j
			for y := 0; y <= top; y++ {
				world.SetBlock(entity.BlockPos{X: x, Y: y, Z: z}, entity.SolidBlock(g.materialAt(y, top)))
			}
		}
	}
	log.Printf("[Terrain] generated %dx%d columns at (%d, %d), seed %d", w, d, originX, originZ, g.Seed)
	return heights
}

func (g TerrainGenerator) materialAt(y, top int) entity.Material {
	switch {
	case y == top && top < g.IceBelow:
		return entity.MaterialIce
	case y == top:
		return entity.MaterialGrass
	case y >= top-2:
		return entity.MaterialDirt
	default:
		return entity.MaterialStone
	}
}

// noise2D - детерминированный псевдошум в [0, 1)
func noise2D(x, y float64) float64 {
	h := x*12.9898 + y*78.233
	v := math.Abs(math.Sin(h) * 43758.5453)
	return v - math.Floor(v)
}

func lerp(a, b, t float64) float64 {
	return a + t*(b-a)
}

func smoothstep(t float64) float64 {
	return t * t * (3.0 - 2.0*t)
}

// smoothNoise - билинейно сглаженный шум по узлам целочисленной решетки
func smoothNoise(x, y float64) float64 {
	x0 := math.Floor(x)
	y0 := math.Floor(y)

	sx := smoothstep(x - x0)
	sy := smoothstep(y - y0)

	nx0 := lerp(noise2D(x0, y0), noise2D(x0+1, y0), sx)
	nx1 := lerp(noise2D(x0, y0+1), noise2D(x0+1, y0+1), sx)
	return lerp(nx0, nx1, sy)
}
