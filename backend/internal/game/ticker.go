package game

import (
	"context"
	"errors"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// GameTicker - игровой цикл хоста. Выполняет зарегистрированные системы с
// фиксированной частотой (по умолчанию 20 TPS), независимо от потока физики.
type GameTicker struct {
	// Конфигурация
	targetTPS    int           // Целевая частота тиков в секунду
	tickDuration time.Duration // Длительность одного тика
	maxTickTime  time.Duration // Максимальное время на один тик

	// Состояние
	isRunning atomic.Bool
	isPaused  atomic.Bool
	tickCount atomic.Uint64
	startTime time.Time
	tickStart atomic.Int64 // начало текущего тика, UnixNano

	lastTickTime time.Time

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	// Мониторинг производительности
	perfMonitor *PerformanceMonitor

	// Управление
	ctx       context.Context
	cancel    context.CancelFunc
	pauseChan chan bool
	done      chan struct{}

	// Метрики
	metricsMutex    sync.Mutex
	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64

	// Фатальная ошибка, остановившая цикл
	errMutex     sync.Mutex
	err          error
	faultHandler func(error)

	// Логирование
	logger           *log.Logger
	warningThreshold time.Duration
}

// TickSystem интерфейс для всех систем тика хоста
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// NewGameTicker создает новый тикер хоста
func NewGameTicker(targetTPS int, logger *log.Logger) *GameTicker {
	if targetTPS <= 0 {
		targetTPS = 20
	}

	if logger == nil {
		logger = log.Default()
	}

	tickDuration := time.Second / time.Duration(targetTPS)
	ctx, cancel := context.WithCancel(context.Background())

	return &GameTicker{
		targetTPS:        targetTPS,
		tickDuration:     tickDuration,
		maxTickTime:      tickDuration * 2,
		systems:          make([]TickSystem, 0),
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4), // Предупреждение при 25% от тика
		ctx:              ctx,
		cancel:           cancel,
		pauseChan:        make(chan bool, 1),
		done:             make(chan struct{}),
		logger:           logger,
		warningThreshold: tickDuration / 2,
	}
}

// SetFaultHandler задает обработчик фатальной ошибки, остановившей цикл
func (gt *GameTicker) SetFaultHandler(handler func(error)) {
	gt.errMutex.Lock()
	defer gt.errMutex.Unlock()
	gt.faultHandler = handler
}

// Start запускает игровой цикл
func (gt *GameTicker) Start() error {
	if !gt.isRunning.CompareAndSwap(false, true) {
		return nil
	}

	gt.startTime = time.Now()
	gt.lastTickTime = gt.startTime

	gt.logger.Printf("[GameTicker] starting host loop: %d TPS (tick every %v)", gt.targetTPS, gt.tickDuration)

	go gt.gameLoop()
	return nil
}

// Stop останавливает игровой цикл
func (gt *GameTicker) Stop() {
	if !gt.isRunning.CompareAndSwap(true, false) {
		return
	}

	gt.logger.Printf("[GameTicker] stopping host loop (ticks executed: %d)", gt.GetTickCount())
	gt.cancel()
}

// Pause приостанавливает или возобновляет цикл
func (gt *GameTicker) Pause(pause bool) {
	gt.isPaused.Store(pause)
	select {
	case gt.pauseChan <- pause:
	default:
	}
}

// Done закрывается после выхода из цикла
func (gt *GameTicker) Done() <-chan struct{} {
	return gt.done
}

// Err возвращает фатальную ошибку, остановившую цикл
func (gt *GameTicker) Err() error {
	gt.errMutex.Lock()
	defer gt.errMutex.Unlock()
	return gt.err
}

// RegisterSystem добавляет систему в игровой цикл
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMutex.Lock()
	defer gt.systemsMutex.Unlock()

	gt.systems = append(gt.systems, system)

	// Сортируем по приоритету (меньше = выше приоритет)
	for i := len(gt.systems) - 1; i > 0; i-- {
		if gt.systems[i].GetPriority() < gt.systems[i-1].GetPriority() {
			gt.systems[i], gt.systems[i-1] = gt.systems[i-1], gt.systems[i]
		} else {
			break
		}
	}

	gt.perfMonitor.initSystemMetrics(system.GetName())

	gt.logger.Printf("[GameTicker] registered system: %s (priority: %d)", system.GetName(), system.GetPriority())
}

// KeepTicking сообщает, остался ли в текущем тике бюджет времени
func (gt *GameTicker) KeepTicking() bool {
	start := gt.tickStart.Load()
	if start == 0 {
		return true
	}
	return time.Since(time.Unix(0, start)) < gt.tickDuration
}

// gameLoop основной игровой цикл
func (gt *GameTicker) gameLoop() {
	defer close(gt.done)

	ticker := time.NewTicker(gt.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-gt.ctx.Done():
			return

		case pause := <-gt.pauseChan:
			for pause {
				select {
				case <-gt.ctx.Done():
					return
				case pause = <-gt.pauseChan:
				}
			}

		case tickTime := <-ticker.C:
			if err := gt.executeTick(tickTime); err != nil {
				gt.halt(err)
				return
			}
		}
	}
}

// executeTick выполняет один тик. Возвращает только фатальные ошибки.
func (gt *GameTicker) executeTick(tickTime time.Time) error {
	tickStart := time.Now()
	gt.tickStart.Store(tickStart.UnixNano())

	deltaTime := tickTime.Sub(gt.lastTickTime)
	if deltaTime > gt.tickDuration*2 {
		gt.logger.Printf("[GameTicker] WARNING: large gap between ticks: %v (expected: %v)", deltaTime, gt.tickDuration)
		gt.metricsMutex.Lock()
		gt.skippedTicks++
		gt.metricsMutex.Unlock()
	}

	gt.tickCount.Add(1)
	gt.lastTickTime = tickTime

	err := gt.executeAllSystems(deltaTime)

	totalTickTime := time.Since(tickStart)
	gt.updateTickMetrics(totalTickTime)
	gt.checkPerformance(totalTickTime)

	return err
}

// executeAllSystems выполняет все системы; останавливается на первой фатальной ошибке
func (gt *GameTicker) executeAllSystems(deltaTime time.Duration) error {
	gt.systemsMutex.RLock()
	systems := make([]TickSystem, len(gt.systems))
	copy(systems, gt.systems)
	gt.systemsMutex.RUnlock()

	for _, system := range systems {
		if err := gt.executeSystem(system, deltaTime); err != nil {
			return err
		}
	}
	return nil
}

// executeSystem выполняет одну систему с замером времени. Ошибки систем
// логируются, сбой потока физики возвращается как фатальный.
func (gt *GameTicker) executeSystem(system TickSystem, deltaTime time.Duration) (fatal error) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Printf("[GameTicker] КРИТИЧЕСКАЯ ОШИБКА в системе %s: %v", systemName, r)
			gt.perfMonitor.recordError(systemName)
		}
	}()

	err := system.Update(deltaTime)
	gt.perfMonitor.recordExecution(systemName, time.Since(systemStart))

	if err == nil {
		return nil
	}

	gt.perfMonitor.recordError(systemName)

	var fault *ThreadFault
	if errors.As(err, &fault) {
		return err
	}

	gt.logger.Printf("[GameTicker] system %s failed: %v", systemName, err)
	return nil
}

// halt останавливает цикл после фатальной ошибки
func (gt *GameTicker) halt(err error) {
	gt.errMutex.Lock()
	gt.err = err
	handler := gt.faultHandler
	gt.errMutex.Unlock()

	gt.logger.Printf("[GameTicker] КРИТИЧЕСКАЯ ОШИБКА, цикл остановлен: %v", err)
	gt.isRunning.Store(false)
	gt.cancel()

	if handler != nil {
		handler(err)
	}
}

// GetStats возвращает статистику игрового цикла
func (gt *GameTicker) GetStats() map[string]interface{} {
	gt.metricsMutex.Lock()
	averageTickTime := gt.averageTickTime
	maxObservedTick := gt.maxObservedTick
	skippedTicks := gt.skippedTicks
	gt.metricsMutex.Unlock()

	gt.systemsMutex.RLock()
	systemsCount := len(gt.systems)
	gt.systemsMutex.RUnlock()

	tickCount := gt.GetTickCount()
	actualTPS := 0.0
	if !gt.startTime.IsZero() {
		if uptime := time.Since(gt.startTime).Seconds(); uptime > 0 {
			actualTPS = float64(tickCount) / uptime
		}
	}

	return map[string]interface{}{
		"target_tps":        gt.targetTPS,
		"actual_tps":        actualTPS,
		"tick_count":        tickCount,
		"average_tick_time": averageTickTime,
		"max_observed_tick": maxObservedTick,
		"skipped_ticks":     skippedTicks,
		"is_running":        gt.isRunning.Load(),
		"is_paused":         gt.isPaused.Load(),
		"systems_count":     systemsCount,
		"systems":           gt.perfMonitor.GetSystemsStats(),
	}
}

// GetTickCount возвращает текущее количество тиков
func (gt *GameTicker) GetTickCount() uint64 {
	return gt.tickCount.Load()
}

func (gt *GameTicker) updateTickMetrics(tickTime time.Duration) {
	gt.metricsMutex.Lock()
	defer gt.metricsMutex.Unlock()

	if tickTime > gt.maxObservedTick {
		gt.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if gt.averageTickTime == 0 {
		gt.averageTickTime = tickTime
	} else {
		gt.averageTickTime = (gt.averageTickTime*9 + tickTime) / 10
	}
}

func (gt *GameTicker) checkPerformance(tickTime time.Duration) {
	if tickTime > gt.maxTickTime {
		gt.logger.Printf("[GameTicker] CRITICAL: tick exceeded max time: %v > %v (target: %v)",
			tickTime, gt.maxTickTime, gt.tickDuration)
	} else if tickTime > gt.warningThreshold {
		gt.logger.Printf("[GameTicker] WARNING: slow tick: %v (target: %v)", tickTime, gt.tickDuration)
	}
}
