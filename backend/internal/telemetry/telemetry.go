// Package telemetry собирает состояние твердых тел после шагов физики
// и периодически выводит сводку.
package telemetry

import (
	"encoding/json"
	"log"
	"sort"
	"sync"
	"time"

	"x-rigid/backend/internal/world"
)

// Sample - состояние тела в конце шага
type Sample struct {
	Timestamp int64     `json:"timestamp"` // Время в миллисекундах
	EntityID  int32     `json:"entity_id"`
	Name      string    `json:"name"`
	World     string    `json:"world"`
	Position  world.Vec `json:"position"`
	Velocity  world.Vec `json:"velocity"`
	Speed     float32   `json:"speed"` // Модуль скорости
	Drag      float32   `json:"drag"`
	NoClip    bool      `json:"noclip"`
}

// Имена счетчиков
const (
	CounterSteps            = "steps"
	CounterBlockCollisions  = "block_collisions"
	CounterEntityCollisions = "entity_collisions"
)

// Recorder хранит последние записи и счетчики событий тел.
// Наблюдатели вызываются в потоке физики, сводка выводится из тика хоста.
type Recorder struct {
	mutex      sync.RWMutex
	enabled    bool
	data       []Sample
	maxEntries int
	counters   map[string]int

	lastPrint     time.Time
	printInterval time.Duration
	logger        *log.Logger
	now           func() time.Time
}

// NewRecorder создает новый сборщик телеметрии
func NewRecorder(maxEntries int, printInterval time.Duration, logger *log.Logger) *Recorder {
	if logger == nil {
		logger = log.Default()
	}
	if maxEntries <= 0 {
		maxEntries = 200
	}
	if printInterval <= 0 {
		printInterval = 2 * time.Second
	}
	return &Recorder{
		enabled:       true,
		maxEntries:    maxEntries,
		counters:      make(map[string]int),
		printInterval: printInterval,
		logger:        logger,
		now:           time.Now,
	}
}

// Attach подписывает сборщик на события тел
func (r *Recorder) Attach(events *world.Events) {
	events.OnEndStep(r.RecordStep)
	events.OnBlockCollision(func(*world.RigidBody, *world.BlockColliderBody) {
		r.count(CounterBlockCollisions)
	})
	events.OnEntityCollision(func(*world.RigidBody, *world.RigidBody) {
		r.count(CounterEntityCollisions)
	})
}

// RecordStep записывает состояние тела после шага. Вызывается в потоке физики.
func (r *Recorder) RecordStep(rb *world.RigidBody, _ float32) {
	s := rb.Live()
	e := rb.Entity()

	r.mutex.Lock()
	defer r.mutex.Unlock()
	if !r.enabled {
		return
	}

	r.data = append(r.data, Sample{
		Timestamp: r.now().UnixMilli(),
		EntityID:  rb.Handle().ID,
		Name:      e.Name(),
		World:     string(e.World().ID()),
		Position:  world.Vec{X: s.Position.X(), Y: s.Position.Y(), Z: s.Position.Z()},
		Velocity:  world.Vec{X: s.LinearVelocity.X(), Y: s.LinearVelocity.Y(), Z: s.LinearVelocity.Z()},
		Speed:     s.LinearVelocity.Len(),
		Drag:      s.DragCoefficient,
		NoClip:    rb.NoClip(),
	})
	// Ограничиваем размер буфера
	if over := len(r.data) - r.maxEntries; over > 0 {
		r.data = append(r.data[:0], r.data[over:]...)
	}
	r.counters[CounterSteps]++
}

func (r *Recorder) count(name string) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	if r.enabled {
		r.counters[name]++
	}
}

// Counter возвращает значение счетчика с последней сводки
func (r *Recorder) Counter(name string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	return r.counters[name]
}

// Samples возвращает копию буфера записей
func (r *Recorder) Samples() []Sample {
	r.mutex.RLock()
	defer r.mutex.RUnlock()
	out := make([]Sample, len(r.data))
	copy(out, r.data)
	return out
}

// Latest возвращает последнюю запись каждого тела, по возрастанию id
func (r *Recorder) Latest() []Sample {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	seen := make(map[int32]bool)
	var out []Sample
	for i := len(r.data) - 1; i >= 0; i-- {
		s := r.data[i]
		if seen[s.EntityID] {
			continue
		}
		seen[s.EntityID] = true
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].EntityID < out[j].EntityID })
	return out
}

// PrintSummary выводит сводку, если прошел интервал. Счетчики сбрасываются.
func (r *Recorder) PrintSummary() bool {
	now := r.now()
	latest := r.Latest()

	r.mutex.Lock()
	if !r.enabled || now.Sub(r.lastPrint) < r.printInterval {
		r.mutex.Unlock()
		return false
	}
	counters := r.counters
	r.counters = make(map[string]int)
	r.lastPrint = now
	r.mutex.Unlock()

	names := make([]string, 0, len(counters))
	for name := range counters {
		names = append(names, name)
	}
	sort.Strings(names)

	r.logger.Printf("[Telemetry] %d samples buffered", len(r.Samples()))
	for _, name := range names {
		r.logger.Printf("[Telemetry] %s: %d", name, counters[name])
	}
	for _, s := range latest {
		r.logger.Printf("[Telemetry] body %d %q in %s: pos=(%.2f, %.2f, %.2f) |v|=%.2f drag=%.3f",
			s.EntityID, s.Name, s.World, s.Position.X, s.Position.Y, s.Position.Z, s.Speed, s.Drag)
	}
	return true
}

// JSON возвращает буфер записей в JSON формате
func (r *Recorder) JSON() (string, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	data, err := json.MarshalIndent(r.data, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// SetEnabled включает/выключает сбор
func (r *Recorder) SetEnabled(enabled bool) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.enabled = enabled
	r.logger.Printf("[Telemetry] enabled=%t", enabled)
}

// Clear очищает все данные телеметрии
func (r *Recorder) Clear() {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.data = nil
	r.counters = make(map[string]int)
}

// System - система тикера, выводящая сводку телеметрии
type System struct {
	recorder *Recorder
}

// NewSystem оборачивает сборщик в систему тикера
func NewSystem(recorder *Recorder) *System {
	return &System{recorder: recorder}
}

func (s *System) Update(time.Duration) error {
	s.recorder.PrintSummary()
	return nil
}

func (s *System) GetName() string  { return "TelemetrySystem" }
func (s *System) GetPriority() int { return 190 }
