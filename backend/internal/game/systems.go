package game

import (
	"fmt"
	"log"
	"time"

	"x-rigid/backend/internal/core/port/in/hostworld"
)

// WorldSource возвращает миры, которые тикает хост
type WorldSource interface {
	Worlds() []hostworld.World
}

// PhysicsHookSystem вызывает хук физики после тика каждого мира хоста
type PhysicsHookSystem struct {
	name       string
	priority   int
	hooks      hostworld.Hooks
	worlds     WorldSource
	gameTicker *GameTicker
}

// NewPhysicsHookSystem создает систему, связывающую тик хоста с физикой
func NewPhysicsHookSystem(hooks hostworld.Hooks, worlds WorldSource, gameTicker *GameTicker) *PhysicsHookSystem {
	return &PhysicsHookSystem{
		name:       "PhysicsHookSystem",
		priority:   50, // После обновления мира хоста
		hooks:      hooks,
		worlds:     worlds,
		gameTicker: gameTicker,
	}
}

// Update передает тик каждого мира физике. Сбой потока физики прерывает тик.
func (phs *PhysicsHookSystem) Update(deltaTime time.Duration) error {
	keepTicking := func() bool { return true }
	if phs.gameTicker != nil {
		keepTicking = phs.gameTicker.KeepTicking
	}

	for _, w := range phs.worlds.Worlds() {
		if err := phs.hooks.OnWorldTicked(w, keepTicking); err != nil {
			return fmt.Errorf("world %s: %w", w.ID(), err)
		}
	}
	return nil
}

// GetName возвращает имя системы
func (phs *PhysicsHookSystem) GetName() string {
	return phs.name
}

// GetPriority возвращает приоритет системы
func (phs *PhysicsHookSystem) GetPriority() int {
	return phs.priority
}

// GameMetricsSystem периодически логирует метрики тикера и потока физики
type GameMetricsSystem struct {
	name          string
	priority      int
	gameTicker    *GameTicker
	physicsThread *PhysicsThread
	logger        *log.Logger

	lastMetricsLog  time.Time
	metricsInterval time.Duration
}

// NewGameMetricsSystem создает новую систему сбора метрик
func NewGameMetricsSystem(gameTicker *GameTicker, physicsThread *PhysicsThread, interval time.Duration, logger *log.Logger) *GameMetricsSystem {
	if logger == nil {
		logger = log.Default()
	}
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &GameMetricsSystem{
		name:            "GameMetricsSystem",
		priority:        200, // Метрики в самом конце
		gameTicker:      gameTicker,
		physicsThread:   physicsThread,
		logger:          logger,
		metricsInterval: interval,
	}
}

// Update собирает и логирует метрики
func (gms *GameMetricsSystem) Update(deltaTime time.Duration) error {
	now := time.Now()
	if now.Sub(gms.lastMetricsLog) < gms.metricsInterval {
		return nil
	}
	gms.lastMetricsLog = now

	stats := gms.gameTicker.GetStats()
	gms.logger.Printf("[GameMetrics] TPS: %.1f/%d, ticks: %d, avg tick: %v",
		stats["actual_tps"], stats["target_tps"], stats["tick_count"], stats["average_tick_time"])

	if gms.physicsThread != nil {
		physics := gms.physicsThread.Stats()
		gms.logger.Printf("[GameMetrics] physics %s: %d steps/s, steps: %d, pending tasks: %d",
			physics["name"], physics["step_rate"], physics["step_count"], physics["pending_tasks"])
	}

	if actualTPS, ok := stats["actual_tps"].(float64); ok && actualTPS < float64(gms.gameTicker.targetTPS)*0.9 {
		gms.logger.Printf("[GameMetrics] WARNING: TPS dropped to %.1f", actualTPS)
	}
	return nil
}

// GetName возвращает имя системы
func (gms *GameMetricsSystem) GetName() string {
	return gms.name
}

// GetPriority возвращает приоритет системы
func (gms *GameMetricsSystem) GetPriority() int {
	return gms.priority
}
