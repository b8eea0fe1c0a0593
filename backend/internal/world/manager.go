package world

import (
	"fmt"
	"log"
	"sync"

	"github.com/go-gl/mathgl/mgl32"

	"x-rigid/backend/internal/core/domain/entity"
	"x-rigid/backend/internal/core/port/in/hostworld"
	port "x-rigid/backend/internal/core/port/out/physics"
	"x-rigid/backend/internal/physics"
)

// StateSyncer отправляет состояние тела клиентам
type StateSyncer interface {
	SyncBody(rb *RigidBody)
}

// Manager хранит пространства миров и реестр твердых тел.
// Реализует hostworld.Hooks.
type Manager struct {
	engine    port.Engine
	scheduler Scheduler
	events    *Events
	logger    *log.Logger

	mu          sync.RWMutex
	syncer      StateSyncer
	spaces      map[hostworld.WorldID]*Space
	bodies      map[entity.Handle]*RigidBody
	worldBodies map[hostworld.WorldID][]*RigidBody
}

var _ hostworld.Hooks = (*Manager)(nil)

// NewManager создает менеджер твердых тел
func NewManager(engine port.Engine, scheduler Scheduler, logger *log.Logger) *Manager {
	if logger == nil {
		logger = log.Default()
	}
	return &Manager{
		engine:      engine,
		scheduler:   scheduler,
		events:      NewEvents(),
		logger:      logger,
		spaces:      make(map[hostworld.WorldID]*Space),
		bodies:      make(map[entity.Handle]*RigidBody),
		worldBodies: make(map[hostworld.WorldID][]*RigidBody),
	}
}

// Events возвращает наблюдателей шагов и столкновений всех пространств
func (m *Manager) Events() *Events {
	return m.events
}

// SetSyncer задает получателя синхронизации
func (m *Manager) SetSyncer(s StateSyncer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.syncer = s
}

// Syncer возвращает текущего получателя синхронизации
func (m *Manager) Syncer() StateSyncer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.syncer
}

// Space возвращает пространство мира, создавая его при первом обращении
func (m *Manager) Space(w hostworld.World) (*Space, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.spaceLocked(w)
}

func (m *Manager) spaceLocked(w hostworld.World) (*Space, error) {
	if s, ok := m.spaces[w.ID()]; ok {
		return s, nil
	}

	cfg := physics.GetPhysicsConfig()
	pw, err := m.engine.NewWorld(port.WorldConfig{
		Gravity: mgl32.Vec3{0, float32(cfg.Gravity), 0},
	})
	if err != nil {
		return nil, fmt.Errorf("create physics world for %s: %w", w.ID(), err)
	}

	s := NewSpace(w, pw, m.engine, m.scheduler, m.events, m.logger)
	m.spaces[w.ID()] = s
	m.scheduler.AddSpace(s)

	m.logger.Printf("[Manager] created %s (engine %s)", s.Name(), m.engine.Name())
	return s, nil
}

// Register создает твердое тело для сущности и ставит в очередь его
// добавление в пространство мира
func (m *Manager) Register(e hostworld.Entity, opts RigidBodyOptions) (*RigidBody, error) {
	h := e.Handle()
	wrap := func(err error) error {
		return &RigidBodyError{Handle: h, Name: e.Name(), Err: err}
	}

	if opts.Shape == nil {
		opts.Shape = BoxFromDimensions
	}
	if opts.DragCoefficient < 0 {
		return nil, wrap(fmt.Errorf("%w: %v", ErrInvalidDrag, opts.DragCoefficient))
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.bodies[h]; exists {
		return nil, wrap(ErrAlreadyRegistered)
	}

	space, err := m.spaceLocked(e.World())
	if err != nil {
		return nil, wrap(err)
	}

	body, err := m.engine.NewRigidBody(opts.Shape(e), opts.Mass)
	if err != nil {
		return nil, wrap(err)
	}

	rb := newRigidBody(e, space, body, opts)
	rb.manager = m

	wid := e.World().ID()
	m.bodies[h] = rb
	m.worldBodies[wid] = append(m.worldBodies[wid], rb)

	space.execute(func() error {
		return space.addRigidBody(rb)
	})
	return rb, nil
}

// Is сообщает, зарегистрирована ли сущность как твердое тело
func (m *Manager) Is(e hostworld.Entity) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.bodies[e.Handle()]
	return ok
}

// Body возвращает твердое тело сущности
func (m *Manager) Body(e hostworld.Entity) (*RigidBody, error) {
	m.mu.RLock()
	rb, ok := m.bodies[e.Handle()]
	m.mu.RUnlock()

	if !ok {
		return nil, &RigidBodyError{Handle: e.Handle(), Name: e.Name(), Err: ErrNotRegistered}
	}
	return rb, nil
}

// Remove снимает сущность с учета и ставит в очередь удаление тела
func (m *Manager) Remove(e hostworld.Entity) error {
	h := e.Handle()

	m.mu.Lock()
	rb, ok := m.bodies[h]
	if !ok {
		m.mu.Unlock()
		return &RigidBodyError{Handle: h, Name: e.Name(), Err: ErrNotRegistered}
	}
	delete(m.bodies, h)

	wid := rb.space.world.ID()
	list := m.worldBodies[wid]
	for i, existing := range list {
		if existing == rb {
			m.worldBodies[wid] = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	space := rb.space
	space.execute(func() error {
		return space.removeRigidBody(rb)
	})
	return nil
}

// Bodies возвращает тела мира в порядке регистрации
func (m *Manager) Bodies(w hostworld.World) []*RigidBody {
	m.mu.RLock()
	defer m.mu.RUnlock()

	list := m.worldBodies[w.ID()]
	result := make([]*RigidBody, len(list))
	copy(result, list)
	return result
}

// AllBodies возвращает все зарегистрированные тела
func (m *Manager) AllBodies() []*RigidBody {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*RigidBody, 0, len(m.bodies))
	for _, list := range m.worldBodies {
		result = append(result, list...)
	}
	return result
}

// SpaceCount возвращает число живых пространств
func (m *Manager) SpaceCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.spaces)
}

// SpawnPayload строит пакет появления тела для клиента
func (m *Manager) SpawnPayload(e hostworld.Entity) ([]byte, error) {
	rb, err := m.Body(e)
	if err != nil {
		return nil, err
	}
	return rb.SpawnPayload(), nil
}

// OnWorldClosed уничтожает пространство закрытого мира вместе с его телами
func (m *Manager) OnWorldClosed(w hostworld.World) {
	m.mu.Lock()
	space, ok := m.spaces[w.ID()]
	delete(m.spaces, w.ID())
	for _, rb := range m.worldBodies[w.ID()] {
		delete(m.bodies, rb.handle)
	}
	delete(m.worldBodies, w.ID())
	m.mu.Unlock()

	if ok {
		space.Destroy()
	}
}

// OnWorldTicked проверяет поток физики на сбой и продвигает тела мира на тик.
// Шаг физики не выполняется в тике хоста, поэтому keepTicking не используется.
func (m *Manager) OnWorldTicked(w hostworld.World, _ func() bool) error {
	if err := m.scheduler.Tick(); err != nil {
		return err
	}
	for _, rb := range m.Bodies(w) {
		rb.Tick()
	}
	return nil
}

// Close уничтожает все пространства
func (m *Manager) Close() {
	m.mu.Lock()
	spaces := make([]*Space, 0, len(m.spaces))
	for _, s := range m.spaces {
		spaces = append(spaces, s)
	}
	clear(m.spaces)
	clear(m.bodies)
	clear(m.worldBodies)
	m.mu.Unlock()

	for _, s := range spaces {
		s.Destroy()
	}
}
