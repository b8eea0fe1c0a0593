package world

import "sync"

// StepListener вызывается в потоке физики на каждом шаге тела
type StepListener func(rb *RigidBody, dt float32)

// BlockCollisionListener вызывается при контакте тела с коллайдером блока
type BlockCollisionListener func(rb *RigidBody, block *BlockColliderBody)

// EntityCollisionListener вызывается при контакте двух твердых тел
type EntityCollisionListener func(rb *RigidBody, other *RigidBody)

// Events хранит наблюдателей шагов и столкновений.
// Наблюдатели вызываются синхронно в порядке регистрации и не должны менять
// набор тел пространства напрямую: для этого есть задачи потока физики.
type Events struct {
	mu              sync.RWMutex
	startStep       []StepListener
	endStep         []StepListener
	blockCollision  []BlockCollisionListener
	entityCollision []EntityCollisionListener
}

// NewEvents создает пустой набор наблюдателей
func NewEvents() *Events {
	return &Events{}
}

func (e *Events) OnStartStep(l StepListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.startStep = append(e.startStep, l)
}

func (e *Events) OnEndStep(l StepListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.endStep = append(e.endStep, l)
}

func (e *Events) OnBlockCollision(l BlockCollisionListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.blockCollision = append(e.blockCollision, l)
}

func (e *Events) OnEntityCollision(l EntityCollisionListener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.entityCollision = append(e.entityCollision, l)
}

func (e *Events) fireStartStep(rb *RigidBody, dt float32) {
	e.mu.RLock()
	listeners := e.startStep
	e.mu.RUnlock()

	for _, l := range listeners {
		l(rb, dt)
	}
}

func (e *Events) fireEndStep(rb *RigidBody, dt float32) {
	e.mu.RLock()
	listeners := e.endStep
	e.mu.RUnlock()

	for _, l := range listeners {
		l(rb, dt)
	}
}

func (e *Events) fireBlockCollision(rb *RigidBody, block *BlockColliderBody) {
	e.mu.RLock()
	listeners := e.blockCollision
	e.mu.RUnlock()

	for _, l := range listeners {
		l(rb, block)
	}
}

func (e *Events) fireEntityCollision(rb, other *RigidBody) {
	e.mu.RLock()
	listeners := e.entityCollision
	e.mu.RUnlock()

	for _, l := range listeners {
		l(rb, other)
	}
}
