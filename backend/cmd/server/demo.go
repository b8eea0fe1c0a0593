package main

import (
	"fmt"
	"log"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"

	"x-rigid/backend/internal/physics"
	"x-rigid/backend/internal/voxel"
	"x-rigid/backend/internal/world"
)

// bodyKind - вид демо-тела
type bodyKind struct {
	typeID        int32
	name          string
	width, height float32
	mass          float32
	drag          float32
}

var demoKinds = []bodyKind{
	{typeID: voxel.TypeCrate, name: "crate", width: 1, height: 1, mass: 1, drag: 0.05},
	{typeID: voxel.TypeBarrel, name: "barrel", width: 0.8, height: 1.2, mass: 1.5, drag: 0.08},
	{typeID: voxel.TypeBoulder, name: "boulder", width: 1.5, height: 1.5, mass: 6, drag: 0.02},
}

// demo - хост с одним сгенерированным миром и набором тел
type demo struct {
	host      *voxel.Host
	overworld *voxel.World
	entities  []*voxel.Entity
}

// buildDemo генерирует террейн и раскладывает тела над поверхностью.
// Одинаковый seed дает те же позиции и те же UUID.
func buildDemo(seed int64, size, bodies int, logger *log.Logger) *demo {
	if size < 8 {
		size = 8
	}
	d := &demo{
		host:      voxel.NewHost(logger),
		overworld: voxel.NewWorld("overworld", 64),
	}
	voxel.DefaultTerrainGenerator(seed).Generate(d.overworld, -size/2, -size/2, size, size)
	d.host.AddWorld(d.overworld)

	rng := rand.New(rand.NewSource(seed))
	for i := 0; i < bodies; i++ {
		k := demoKinds[i%len(demoKinds)]
		x := rng.Intn(size-4) - size/2 + 2
		z := rng.Intn(size-4) - size/2 + 2
		y := d.overworld.SurfaceY(x, z) + 6 + rng.Intn(10)

		e := d.host.SpawnStable(d.overworld, k.typeID, fmt.Sprintf("%s-%d", k.name, i),
			mgl64.Vec3{float64(x) + 0.5, float64(y), float64(z) + 0.5}, k.width, k.height)
		d.entities = append(d.entities, e)
	}
	return d
}

// register регистрирует твердые тела для всех демо-сущностей
func (d *demo) register(m *world.Manager) ([]*world.RigidBody, error) {
	out := make([]*world.RigidBody, 0, len(d.entities))
	for _, e := range d.entities {
		opts := world.DefaultRigidBodyOptions()
		if k, ok := kindOf(e.Handle().TypeID); ok {
			opts.Mass = k.mass
			opts.DragCoefficient = k.drag
		}
		rb, err := m.Register(e, opts)
		if err != nil {
			return out, err
		}
		out = append(out, rb)
	}
	return out, nil
}

func kindOf(typeID int32) (bodyKind, bool) {
	for _, k := range demoKinds {
		if k.typeID == typeID {
			return k, true
		}
	}
	return bodyKind{}, false
}

// loadConfig читает конфигурацию из файла или берет значения по умолчанию
func loadConfig(path string) (*physics.PhysicsConfig, error) {
	if path == "" {
		cfg := physics.DefaultPhysicsConfig()
		return cfg, cfg.Validate()
	}
	return physics.Load(path)
}
