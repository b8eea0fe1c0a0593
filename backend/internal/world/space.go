package world

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	port "x-rigid/backend/internal/core/port/out/physics"
	"x-rigid/backend/internal/game"
	"x-rigid/backend/internal/physics"
)

// Scheduler - то, что пространству нужно от потока физики.
// *game.PhysicsThread реализует этот интерфейс.
type Scheduler interface {
	Execute(task game.Task)
	AddSpace(s game.Steppable)
	RemoveSpace(s game.Steppable)
	IsRunning() bool
	Done() <-chan struct{}
	StepSeconds() float32
	Tick() error
}

// Space - физическое пространство одного мира хоста.
// Набор тел и мир движка меняются только в потоке физики.
type Space struct {
	world     hostworld.World
	physics   port.World
	scheduler Scheduler
	events    *Events
	terrain   *TerrainLoader
	logger    *log.Logger

	rigidBodies []*RigidBody
	byBody      map[port.Body]*RigidBody

	threadMu sync.Mutex
	thread   *game.PhysicsThread

	destroyed   atomic.Bool
	releaseOnce sync.Once
}

// NewSpace создает пространство. В поток оно попадает через scheduler.AddSpace.
func NewSpace(w hostworld.World, pw port.World, engine port.Engine, scheduler Scheduler, events *Events, logger *log.Logger) *Space {
	if events == nil {
		events = NewEvents()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Space{
		world:     w,
		physics:   pw,
		scheduler: scheduler,
		events:    events,
		terrain:   NewTerrainLoader(w, pw, NewColliderFactory(engine)),
		logger:    logger,
		byBody:    make(map[port.Body]*RigidBody),
	}
}

// Name возвращает имя пространства для метрик
func (s *Space) Name() string {
	return fmt.Sprintf("space[%s]", s.world.ID())
}

// World возвращает мир хоста
func (s *Space) World() hostworld.World {
	return s.world
}

// Terrain возвращает загрузчик коллайдеров. Только для потока физики.
func (s *Space) Terrain() *TerrainLoader {
	return s.terrain
}

// Thread возвращает поток, к которому привязано пространство
func (s *Space) Thread() *game.PhysicsThread {
	s.threadMu.Lock()
	defer s.threadMu.Unlock()
	return s.thread
}

// SetThread привязывает пространство к потоку
func (s *Space) SetThread(t *game.PhysicsThread) {
	s.threadMu.Lock()
	defer s.threadMu.Unlock()
	s.thread = t
}

// IsDestroyed сообщает, уничтожено ли пространство
func (s *Space) IsDestroyed() bool {
	return s.destroyed.Load()
}

// RigidBodies возвращает тела в порядке добавления. Только для потока физики.
func (s *Space) RigidBodies() []*RigidBody {
	return s.rigidBodies
}

func (s *Space) execute(task game.Task) {
	s.scheduler.Execute(task)
}

// Step продвигает пространство на один шаг потока:
// террейн, движок, обработчики тел с публикацией, события столкновений.
func (s *Space) Step() error {
	if s.destroyed.Load() {
		return nil
	}

	cfg := physics.GetPhysicsConfig()
	dt := s.scheduler.StepSeconds()

	bodies := make([]port.Body, 0, len(s.rigidBodies))
	for _, rb := range s.rigidBodies {
		if !rb.noClip {
			bodies = append(bodies, rb.body)
		}
	}
	if err := s.terrain.Maintain(bodies, entity.CubeAround(cfg.BlockDistance)); err != nil {
		return fmt.Errorf("terrain: %w", err)
	}

	contacts, err := s.physics.Step(dt)
	if err != nil {
		return fmt.Errorf("engine step: %w", err)
	}

	for _, rb := range s.rigidBodies {
		rb.step(dt, cfg, s.events)
	}
	for _, rb := range s.rigidBodies {
		rb.publish()
	}

	s.dispatch(contacts)
	return nil
}

func (s *Space) dispatch(contacts []port.Contact) {
	for _, c := range contacts {
		a, aok := s.byBody[c.A]
		b, bok := s.byBody[c.B]

		switch {
		case aok && bok:
			s.events.fireEntityCollision(a, b)
			s.events.fireEntityCollision(b, a)
		case aok:
			if block, ok := s.terrain.Collider(c.B); ok {
				s.events.fireBlockCollision(a, block)
			}
		case bok:
			if block, ok := s.terrain.Collider(c.A); ok {
				s.events.fireBlockCollision(b, block)
			}
		}
	}
}

// addRigidBody добавляет тело в мир движка. Выполняется задачей потока.
func (s *Space) addRigidBody(rb *RigidBody) error {
	if s.destroyed.Load() {
		return nil
	}
	if _, ok := s.byBody[rb.body]; ok {
		return nil
	}
	if err := s.physics.AddBody(rb.body); err != nil {
		return fmt.Errorf("add %s: %w", rb.handle, err)
	}
	s.rigidBodies = append(s.rigidBodies, rb)
	s.byBody[rb.body] = rb
	return nil
}

// removeRigidBody удаляет тело из мира движка. Выполняется задачей потока.
func (s *Space) removeRigidBody(rb *RigidBody) error {
	if s.destroyed.Load() {
		return nil
	}
	if _, ok := s.byBody[rb.body]; !ok {
		return nil
	}
	if err := s.physics.RemoveBody(rb.body); err != nil {
		return fmt.Errorf("remove %s: %w", rb.handle, err)
	}
	delete(s.byBody, rb.body)
	for i, existing := range s.rigidBodies {
		if existing == rb {
			s.rigidBodies = append(s.rigidBodies[:i], s.rigidBodies[i+1:]...)
			break
		}
	}
	return nil
}

// Destroy снимает пространство с потока и закрывает мир движка.
// Повторные вызовы ничего не делают. Если поток уже завершился,
// мир закрывается в вызывающей горутине.
func (s *Space) Destroy() {
	if !s.destroyed.CompareAndSwap(false, true) {
		return
	}
	if !s.scheduler.IsRunning() {
		s.releaseOnce.Do(s.release)
		return
	}

	s.scheduler.RemoveSpace(s)
	s.scheduler.Execute(func() error {
		s.releaseOnce.Do(s.release)
		return nil
	})

	// поток мог упасть после IsRunning и уже не разберет очередь
	done := s.scheduler.Done()
	select {
	case <-done:
		s.releaseOnce.Do(s.release)
	default:
		go func() {
			<-done
			s.releaseOnce.Do(s.release)
		}()
	}
}

func (s *Space) release() {
	s.terrain.reset()
	s.rigidBodies = nil
	clear(s.byBody)

	if err := s.physics.Close(); err != nil {
		s.logger.Printf("[Space] close %s: %v", s.Name(), err)
	}
	s.SetThread(nil)
	s.logger.Printf("[Space] %s destroyed", s.Name())
}
