package world

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	featherphysics "x-rigid/backend/internal/adapter/out/physics"
	"x-rigid/backend/internal/core/domain/entity"
	port "x-rigid/backend/internal/core/port/out/physics"
)

type terrainFixture struct {
	world   *fakeWorld
	physics port.World
	engine  port.Engine
	loader  *TerrainLoader
}

func newTerrainFixture(t *testing.T) *terrainFixture {
	t.Helper()
	engine := featherphysics.NewFeatherEngine()
	pw, err := engine.NewWorld(port.WorldConfig{})
	if err != nil {
		t.Fatalf("NewWorld() error = %v", err)
	}
	w := newFakeWorld("overworld")
	return &terrainFixture{
		world:   w,
		physics: pw,
		engine:  engine,
		loader:  NewTerrainLoader(w, pw, NewColliderFactory(engine)),
	}
}

func (f *terrainFixture) body(t *testing.T, x, y, z float32) port.Body {
	t.Helper()
	b, err := f.engine.NewRigidBody(port.BoxShape(0.5, 0.5, 0.5), 1)
	if err != nil {
		t.Fatalf("NewRigidBody() error = %v", err)
	}
	b.SetPosition(mgl32.Vec3{x, y, z})
	return b
}

func TestMaintainLoadsWindowOnce(t *testing.T) {
	f := newTerrainFixture(t)
	f.world.floor(-5, 5, -5, 5)
	body := f.body(t, 0.5, 1.5, 0.5)

	for i := 0; i < 3; i++ {
		if err := f.loader.Maintain([]port.Body{body}, entity.CubeAround(1)); err != nil {
			t.Fatalf("Maintain() error = %v", err)
		}
		// окно [-0.5, 1.5) по x и z дает ячейки -1, 0, 1; по y твердый только слой 0
		if got := f.loader.Count(); got != 9 {
			t.Fatalf("pass %d: Count() = %d, want 9", i, got)
		}
		if got := f.physics.BodyCount(); got != 9 {
			t.Fatalf("pass %d: physics BodyCount() = %d, want 9", i, got)
		}
	}

	if len(f.loader.toKeep) != 0 {
		t.Errorf("keep set not cleared after purge: %d entries", len(f.loader.toKeep))
	}
}

func TestMaintainPurgesOutsideUnionOfWindows(t *testing.T) {
	f := newTerrainFixture(t)
	f.world.floor(-5, 15, -5, 5)
	a := f.body(t, 0.5, 1.5, 0.5)
	b := f.body(t, 10.5, 1.5, 0.5)

	if err := f.loader.Maintain([]port.Body{a, b}, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if got := f.loader.Count(); got != 18 {
		t.Fatalf("Count() = %d, want 18", got)
	}

	// b уходит туда, где пола нет
	b.SetPosition(mgl32.Vec3{30.5, 1.5, 0.5})
	if err := f.loader.Maintain([]port.Body{a, b}, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if got := f.loader.Count(); got != 9 {
		t.Fatalf("Count() = %d, want 9", got)
	}
	for _, pos := range f.loader.Positions() {
		if pos.X < -1 || pos.X > 1 || pos.Z < -1 || pos.Z > 1 || pos.Y != 0 {
			t.Errorf("collider %v outside window of remaining body", pos)
		}
	}
	if got := f.physics.BodyCount(); got != 9 {
		t.Errorf("physics BodyCount() = %d, want 9", got)
	}
}

func TestMaintainWithoutBodiesPurgesEverything(t *testing.T) {
	f := newTerrainFixture(t)
	f.world.floor(-2, 2, -2, 2)

	if err := f.loader.Maintain([]port.Body{f.body(t, 0.5, 1.5, 0.5)}, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if err := f.loader.Maintain(nil, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if got := f.loader.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0", got)
	}
	if got := f.physics.BodyCount(); got != 0 {
		t.Errorf("physics BodyCount() = %d, want 0", got)
	}
}

func TestMaintainSkipsPassableBlocks(t *testing.T) {
	f := newTerrainFixture(t)
	f.world.set(entity.BlockPos{X: 0, Y: 0, Z: 0}, entity.Block{
		Material: entity.MaterialWater,
		Passable: true,
		Shape:    entity.FullCube,
	})
	f.world.set(entity.BlockPos{X: 1, Y: 0, Z: 0}, entity.Block{Material: entity.MaterialGlass})

	if err := f.loader.Maintain([]port.Body{f.body(t, 0.5, 1.5, 0.5)}, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	if got := f.loader.Count(); got != 0 {
		t.Errorf("Count() = %d, want 0 for passable and shapeless blocks", got)
	}
}

func TestMaintainReplacesChangedBlock(t *testing.T) {
	f := newTerrainFixture(t)
	f.world.floor(0, 0, 0, 0)
	body := f.body(t, 0.5, 1.5, 0.5)
	origin := entity.BlockPos{}

	if err := f.loader.Maintain([]port.Body{body}, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}
	before, ok := f.loader.ColliderAt(origin)
	if !ok {
		t.Fatal("no collider at origin")
	}

	f.world.set(origin, entity.SolidBlock(entity.MaterialIce))
	if err := f.loader.Maintain([]port.Body{body}, entity.CubeAround(1)); err != nil {
		t.Fatalf("Maintain() error = %v", err)
	}

	after, ok := f.loader.ColliderAt(origin)
	if !ok {
		t.Fatal("collider at origin was purged")
	}
	if after == before {
		t.Error("collider was not replaced after block change")
	}
	if after.Friction != SlipperyFriction {
		t.Errorf("Friction = %v, want %v", after.Friction, SlipperyFriction)
	}
	if f.physics.Contains(before.Body()) {
		t.Error("stale collider still in physics world")
	}
	if got, ok := f.loader.Collider(after.Body()); !ok || got != after {
		t.Error("Collider() does not resolve the new engine body")
	}
}

func TestFrictionClasses(t *testing.T) {
	tests := []struct {
		material entity.Material
		want     float32
	}{
		{entity.MaterialIce, SlipperyFriction},
		{entity.MaterialPackedIce, SlipperyFriction},
		{entity.MaterialBlueIce, SlipperyFriction},
		{entity.MaterialFrostedIce, SlipperyFriction},
		{entity.MaterialHoney, SoftFriction},
		{entity.MaterialSlime, SoftFriction},
		{entity.MaterialSoulSand, SoftFriction},
		{entity.MaterialStone, StandardFriction},
		{entity.MaterialDirt, StandardFriction},
		{entity.Material("unknown_modded_block"), StandardFriction},
	}

	for _, tt := range tests {
		t.Run(string(tt.material), func(t *testing.T) {
			if got := FrictionFor(tt.material); got != tt.want {
				t.Errorf("FrictionFor(%s) = %v, want %v", tt.material, got, tt.want)
			}
		})
	}
}

func TestRegisterFrictionClass(t *testing.T) {
	m := entity.Material("test_rubber")
	if got := FrictionClassOf(m); got != FrictionStandard {
		t.Fatalf("FrictionClassOf() = %v, want standard", got)
	}
	RegisterFrictionClass(m, FrictionSoft)
	if got := FrictionFor(m); got != SoftFriction {
		t.Errorf("FrictionFor() = %v, want %v", got, SoftFriction)
	}
}

func TestColliderFactoryCreate(t *testing.T) {
	factory := NewColliderFactory(featherphysics.NewFeatherEngine())

	c, err := factory.Create(entity.BlockPos{X: 2, Y: 3, Z: 4}, entity.Air)
	if err != nil || c != nil {
		t.Fatalf("Create(air) = %v, %v; want nil, nil", c, err)
	}

	c, err = factory.Create(entity.BlockPos{X: 2, Y: 3, Z: 4}, entity.SolidBlock(entity.MaterialHoney))
	if err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	body := c.Body()
	if !body.IsStatic() {
		t.Error("block collider must be static")
	}
	if got, want := body.Position(), (mgl32.Vec3{2.5, 3.5, 4.5}); !got.ApproxEqual(want) {
		t.Errorf("Position() = %v, want %v", got, want)
	}
	if got, want := body.Shape().HalfExtents, (mgl32.Vec3{0.5, 0.5, 0.5}); !got.ApproxEqual(want) {
		t.Errorf("HalfExtents = %v, want %v", got, want)
	}
	if body.Friction() != SoftFriction || c.Friction != SoftFriction {
		t.Errorf("friction = %v/%v, want %v", body.Friction(), c.Friction, SoftFriction)
	}
}
