package persistence

import (
	"context"
	"fmt"
	"log"
	"time"

	"x-rigid/backend/internal/core/port/in/hostworld"
	"x-rigid/backend/internal/world"
)

// BodySource отдает тела для сохранения. *world.Manager реализует интерфейс.
type BodySource interface {
	AllBodies() []*world.RigidBody
}

// AutosaveSystem периодически сохраняет записи тел из тика хоста
type AutosaveSystem struct {
	name     string
	priority int
	store    *Store
	source   BodySource
	interval time.Duration
	timeout  time.Duration
	logger   *log.Logger

	lastSave time.Time
	saves    int
}

// NewAutosaveSystem создает систему автосохранения
func NewAutosaveSystem(store *Store, source BodySource, interval time.Duration, logger *log.Logger) *AutosaveSystem {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &AutosaveSystem{
		name:     "AutosaveSystem",
		priority: 150, // После физики, до метрик
		store:    store,
		source:   source,
		interval: interval,
		timeout:  5 * time.Second,
		logger:   logger,
	}
}

// Update сохраняет тела, если с прошлого сохранения прошел интервал
func (a *AutosaveSystem) Update(deltaTime time.Duration) error {
	now := time.Now()
	if !a.lastSave.IsZero() && now.Sub(a.lastSave) < a.interval {
		return nil
	}
	a.lastSave = now
	return a.Flush()
}

// Flush сохраняет тела немедленно
func (a *AutosaveSystem) Flush() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
	defer cancel()

	bodies := a.source.AllBodies()
	if err := a.store.SaveBodies(ctx, bodies); err != nil {
		return fmt.Errorf("autosave: %w", err)
	}
	a.saves++
	a.logger.Printf("[Autosave] saved %d rigid bodies", len(bodies))
	return nil
}

// Saves возвращает число успешных сохранений
func (a *AutosaveSystem) Saves() int {
	return a.saves
}

// GetName возвращает имя системы
func (a *AutosaveSystem) GetName() string {
	return a.name
}

// GetPriority возвращает приоритет системы
func (a *AutosaveSystem) GetPriority() int {
	return a.priority
}

// Restore переносит сохраненные записи в тела мира. Возвращает число
// восстановленных тел; тела без записи не меняются.
func Restore(ctx context.Context, store *Store, m *world.Manager, w hostworld.World) (int, error) {
	restored := 0
	for _, rb := range m.Bodies(w) {
		stored, ok, err := store.Load(ctx, rb.Handle().UUID)
		if err != nil {
			return restored, fmt.Errorf("load %s: %w", rb.Handle(), err)
		}
		if !ok {
			continue
		}
		if err := rb.ReadRecord(stored.Record); err != nil {
			return restored, fmt.Errorf("restore %s: %w", rb.Handle(), err)
		}
		restored++
	}
	return restored, nil
}
