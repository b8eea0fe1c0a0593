package world

import (
	"io"
	"log"
	"sync"
	"testing"

	"github.com/go-gl/mathgl/mgl64"

	featherphysics "x-rigid/backend/internal/adapter/out/physics"
	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	"x-rigid/backend/internal/game"
	"x-rigid/backend/internal/physics"
)

// fakeScheduler выполняет задачи и шаги вручную, в горутине теста
type fakeScheduler struct {
	mu      sync.Mutex
	tasks   []game.Task
	spaces  []game.Steppable
	running bool
	dt      float32
	fault   error
	done    chan struct{}
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{running: true, dt: 1.0 / 60, done: make(chan struct{})}
}

func (s *fakeScheduler) Execute(task game.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, task)
}

func (s *fakeScheduler) AddSpace(sp game.Steppable) {
	s.Execute(func() error {
		s.spaces = append(s.spaces, sp)
		return nil
	})
}

func (s *fakeScheduler) RemoveSpace(sp game.Steppable) {
	s.Execute(func() error {
		for i, existing := range s.spaces {
			if existing == sp {
				s.spaces = append(s.spaces[:i], s.spaces[i+1:]...)
				break
			}
		}
		return nil
	})
}

func (s *fakeScheduler) IsRunning() bool {
	return s.running
}

func (s *fakeScheduler) Done() <-chan struct{} {
	return s.done
}

// exit имитирует поток, завершившийся без разбора очереди
func (s *fakeScheduler) exit() {
	close(s.done)
}

func (s *fakeScheduler) StepSeconds() float32 {
	return s.dt
}

func (s *fakeScheduler) Tick() error {
	err := s.fault
	s.fault = nil
	return err
}

func (s *fakeScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// flush выполняет задачи, включая поставленные другими задачами
func (s *fakeScheduler) flush(t *testing.T) {
	t.Helper()
	for {
		s.mu.Lock()
		tasks := s.tasks
		s.tasks = nil
		s.mu.Unlock()

		if len(tasks) == 0 {
			return
		}
		for _, task := range tasks {
			if err := task(); err != nil {
				t.Fatalf("task failed: %v", err)
			}
		}
	}
}

// step повторяет один проход потока физики: задачи, затем пространства
func (s *fakeScheduler) step(t *testing.T) {
	t.Helper()
	s.flush(t)
	for _, sp := range s.spaces {
		if err := sp.Step(); err != nil {
			t.Fatalf("step %s: %v", sp.Name(), err)
		}
	}
}

type fakeWorld struct {
	id     hostworld.WorldID
	client bool

	mu     sync.RWMutex
	blocks map[entity.BlockPos]entity.Block
}

func newFakeWorld(id string) *fakeWorld {
	return &fakeWorld{
		id:     hostworld.WorldID(id),
		blocks: make(map[entity.BlockPos]entity.Block),
	}
}

func (w *fakeWorld) ID() hostworld.WorldID { return w.id }
func (w *fakeWorld) IsClient() bool        { return w.client }

func (w *fakeWorld) BlockAt(pos entity.BlockPos) entity.Block {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if b, ok := w.blocks[pos]; ok {
		return b
	}
	return entity.Air
}

func (w *fakeWorld) set(pos entity.BlockPos, b entity.Block) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.blocks[pos] = b
}

// floor кладет слой камня на y=0 в квадрате [x0, x1] x [z0, z1]
func (w *fakeWorld) floor(x0, x1, z0, z1 int) {
	for x := x0; x <= x1; x++ {
		for z := z0; z <= z1; z++ {
			w.set(entity.BlockPos{X: x, Y: 0, Z: z}, entity.SolidBlock(entity.MaterialStone))
		}
	}
}

type fakeEntity struct {
	handle entity.Handle
	name   string
	world  hostworld.World
	width  float32
	height float32

	mu         sync.Mutex
	pos        mgl64.Vec3
	yaw, pitch float32
	updates    int
}

func newFakeEntity(w hostworld.World, id int32, pos mgl64.Vec3) *fakeEntity {
	return &fakeEntity{
		handle: entity.NewHandle(id, 7),
		name:   "crate",
		world:  w,
		width:  1,
		height: 1,
		pos:    pos,
	}
}

func (e *fakeEntity) Handle() entity.Handle  { return e.handle }
func (e *fakeEntity) Name() string           { return e.name }
func (e *fakeEntity) World() hostworld.World { return e.world }

func (e *fakeEntity) Position() mgl64.Vec3 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.pos
}

func (e *fakeEntity) Dimensions() (float32, float32) {
	return e.width, e.height
}

func (e *fakeEntity) UpdatePosition(x, y, z float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.pos = mgl64.Vec3{x, y, z}
	e.updates++
}

func (e *fakeEntity) SetRotation(yaw, pitch float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.yaw, e.pitch = yaw, pitch
}

type countingSyncer struct {
	mu     sync.Mutex
	synced []*RigidBody
}

func (s *countingSyncer) SyncBody(rb *RigidBody) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.synced = append(s.synced, rb)
}

func (s *countingSyncer) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.synced)
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func newTestManager() (*Manager, *fakeScheduler) {
	sched := newFakeScheduler()
	return NewManager(featherphysics.NewFeatherEngine(), sched, quietLogger()), sched
}

// withConfig меняет глобальную конфигурацию физики на время теста
func withConfig(t *testing.T, mutate func(cfg *physics.PhysicsConfig)) {
	t.Helper()
	old := physics.GetPhysicsConfig()
	cfg := physics.GetPhysicsConfig()
	mutate(cfg)
	physics.SetPhysicsConfig(cfg)
	t.Cleanup(func() { physics.SetPhysicsConfig(old) })
}

func register(t *testing.T, m *Manager, e hostworld.Entity, mutate func(o *RigidBodyOptions)) *RigidBody {
	t.Helper()
	opts := DefaultRigidBodyOptions()
	if mutate != nil {
		mutate(&opts)
	}
	rb, err := m.Register(e, opts)
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	return rb
}
