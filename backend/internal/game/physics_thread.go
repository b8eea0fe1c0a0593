package game

import (
	"errors"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"
)

// ErrInvalidStepRate возвращается при попытке задать неположительную частоту
var ErrInvalidStepRate = errors.New("step rate must be positive")

// Steppable - пространство, которое поток физики продвигает каждый шаг
type Steppable interface {
	// Name возвращает имя для метрик и ошибок
	Name() string

	// Step продвигает пространство на один интервал
	Step() error

	// Thread возвращает поток, к которому привязано пространство, или nil
	Thread() *PhysicsThread

	// SetThread привязывает пространство к потоку
	SetThread(t *PhysicsThread)
}

// ThreadFault - ошибка, остановившая поток физики
type ThreadFault struct {
	Thread string
	Cause  error
}

func (f *ThreadFault) Error() string {
	return fmt.Sprintf("physics thread %s failed: %v", f.Thread, f.Cause)
}

func (f *ThreadFault) Unwrap() error {
	return f.Cause
}

// ThreadConfig задает параметры потока физики
type ThreadConfig struct {
	Name           string
	StepRate       int
	MaxBehindSteps int
	JoinTimeout    time.Duration
}

// PhysicsThread - выделенная горутина, которая выполняет задачи и шагает пространства
// с фиксированной частотой, независимой от тиков хоста.
type PhysicsThread struct {
	name        string
	maxBehind   int
	joinTimeout time.Duration

	stepInterval atomic.Int64 // наносекунды
	stepCount    atomic.Uint64

	tasks  taskQueue
	spaces []Steppable // меняется только в потоке физики

	perfMonitor *PerformanceMonitor

	faultMu sync.Mutex
	fault   *ThreadFault

	running  atomic.Bool
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	logger *log.Logger
}

// NewPhysicsThread создает и запускает поток физики
func NewPhysicsThread(cfg ThreadConfig, logger *log.Logger) (*PhysicsThread, error) {
	if cfg.StepRate <= 0 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidStepRate, cfg.StepRate)
	}
	if cfg.Name == "" {
		cfg.Name = "physics"
	}
	if cfg.MaxBehindSteps <= 0 {
		cfg.MaxBehindSteps = 5
	}
	if logger == nil {
		logger = log.Default()
	}

	interval := time.Second / time.Duration(cfg.StepRate)
	t := &PhysicsThread{
		name:        cfg.Name,
		maxBehind:   cfg.MaxBehindSteps,
		joinTimeout: cfg.JoinTimeout,
		perfMonitor: NewPerformanceMonitor(60, interval/2),
		stopChan:    make(chan struct{}),
		done:        make(chan struct{}),
		logger:      logger,
	}
	t.stepInterval.Store(int64(interval))
	t.running.Store(true)

	t.logger.Printf("[PhysicsThread] starting %s: %d steps/s (step every %v)", t.name, cfg.StepRate, interval)
	go t.run()

	return t, nil
}

// Name возвращает имя потока
func (t *PhysicsThread) Name() string {
	return t.name
}

// Execute ставит задачу в очередь. Задачи выполняются в начале следующего шага.
func (t *PhysicsThread) Execute(task Task) {
	if task == nil {
		return
	}
	t.tasks.push(task)
}

// AddSpace ставит в очередь регистрацию пространства
func (t *PhysicsThread) AddSpace(s Steppable) {
	t.Execute(func() error {
		for _, existing := range t.spaces {
			if existing == s {
				return nil
			}
		}
		t.spaces = append(t.spaces, s)
		t.perfMonitor.initSystemMetrics(s.Name())
		return nil
	})
}

// RemoveSpace ставит в очередь удаление пространства
func (t *PhysicsThread) RemoveSpace(s Steppable) {
	t.Execute(func() error {
		t.removeSpace(s)
		return nil
	})
}

func (t *PhysicsThread) removeSpace(s Steppable) {
	for i, existing := range t.spaces {
		if existing == s {
			t.spaces = append(t.spaces[:i], t.spaces[i+1:]...)
			t.perfMonitor.forget(s.Name())
			return
		}
	}
}

// SetStepRate меняет частоту шага; применяется при следующем расчете дедлайна
func (t *PhysicsThread) SetStepRate(stepsPerSecond int) error {
	if stepsPerSecond <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidStepRate, stepsPerSecond)
	}
	t.stepInterval.Store(int64(time.Second / time.Duration(stepsPerSecond)))
	return nil
}

// StepRate возвращает текущую частоту шага
func (t *PhysicsThread) StepRate() int {
	return int(time.Second / t.StepInterval())
}

// StepInterval возвращает длительность шага
func (t *PhysicsThread) StepInterval() time.Duration {
	return time.Duration(t.stepInterval.Load())
}

// StepSeconds возвращает длительность шага в секундах
func (t *PhysicsThread) StepSeconds() float32 {
	return float32(t.StepInterval().Seconds())
}

// StepCount возвращает число выполненных шагов
func (t *PhysicsThread) StepCount() uint64 {
	return t.stepCount.Load()
}

// IsRunning сообщает, что цикл потока еще работает
func (t *PhysicsThread) IsRunning() bool {
	return t.running.Load()
}

// Done закрывается, когда цикл потока завершился
func (t *PhysicsThread) Done() <-chan struct{} {
	return t.done
}

// Tick вызывается из потока хоста. Возвращает ошибку, остановившую поток,
// ровно один раз.
func (t *PhysicsThread) Tick() error {
	t.faultMu.Lock()
	fault := t.fault
	t.fault = nil
	t.faultMu.Unlock()

	if fault != nil {
		return fault
	}
	return nil
}

// Destroy останавливает поток и ждет его завершения не дольше JoinTimeout
func (t *PhysicsThread) Destroy() {
	t.stop()

	if t.joinTimeout <= 0 {
		<-t.done
		return
	}

	timer := time.NewTimer(t.joinTimeout)
	defer timer.Stop()

	select {
	case <-t.done:
		t.logger.Printf("[PhysicsThread] %s stopped after %d steps", t.name, t.StepCount())
	case <-timer.C:
		t.logger.Printf("[PhysicsThread] failed to join %s within %v", t.name, t.joinTimeout)
	}
}

func (t *PhysicsThread) stop() {
	t.stopOnce.Do(func() {
		close(t.stopChan)
	})
}

// Stats возвращает статистику потока и метрики шагов пространств
func (t *PhysicsThread) Stats() map[string]interface{} {
	interval := t.StepInterval()
	return map[string]interface{}{
		"name":          t.name,
		"step_rate":     int(time.Second / interval),
		"step_interval": interval,
		"step_count":    t.StepCount(),
		"pending_tasks": t.tasks.len(),
		"is_running":    t.IsRunning(),
		"spaces":        t.perfMonitor.GetSystemsStats(),
	}
}

// SpaceMetrics возвращает метрики шагов пространства
func (t *PhysicsThread) SpaceMetrics(name string) (SystemMetrics, bool) {
	return t.perfMonitor.Metrics(name)
}

// run - основной цикл потока. Дедлайн сдвигается на интервал после каждого шага,
// между шагами поток спит на таймере.
func (t *PhysicsThread) run() {
	defer close(t.done)
	defer t.running.Store(false)

	timer := time.NewTimer(0)
	if !timer.Stop() {
		select {
		case <-timer.C:
		default:
		}
	}
	defer timer.Stop()

	next := time.Now().Add(t.StepInterval())

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		now := time.Now()
		interval := t.StepInterval()

		if !now.Before(next) {
			next = next.Add(interval)
			if now.Sub(next) > interval*time.Duration(t.maxBehind) {
				next = now.Add(interval)
			}

			if err := safely(t.runStep); err != nil {
				t.fail(err)
				return
			}
			t.stepCount.Add(1)
			continue
		}

		timer.Reset(next.Sub(now))
		select {
		case <-timer.C:
		case <-t.stopChan:
			return
		}
	}
}

// runStep выполняет все задачи из очереди, затем шагает пространства
// в порядке регистрации
func (t *PhysicsThread) runStep() error {
	if err := t.runTasks(); err != nil {
		return err
	}

	for _, s := range t.spaces {
		switch bound := s.Thread(); {
		case bound == nil:
			s.SetThread(t)
		case bound != t:
			continue
		}

		name := s.Name()
		start := time.Now()
		err := safely(s.Step)
		elapsed := time.Since(start)

		if t.perfMonitor.recordExecution(name, elapsed) == SeverityCritical {
			t.logger.Printf("[PhysicsThread] slow step of %s: %v (interval %v)", name, elapsed, t.StepInterval())
		}
		if err != nil {
			t.perfMonitor.recordError(name)
			return fmt.Errorf("step %s: %w", name, err)
		}
	}
	return nil
}

// runTasks выполняет задачи, пока очередь не опустеет, включая задачи,
// поставленные другими задачами
func (t *PhysicsThread) runTasks() error {
	for {
		tasks := t.tasks.drain()
		if len(tasks) == 0 {
			return nil
		}
		for _, task := range tasks {
			if err := safely(task); err != nil {
				return fmt.Errorf("task: %w", err)
			}
		}
	}
}

func (t *PhysicsThread) fail(err error) {
	fault := &ThreadFault{Thread: t.name, Cause: err}

	t.faultMu.Lock()
	t.fault = fault
	t.faultMu.Unlock()

	t.logger.Printf("[PhysicsThread] КРИТИЧЕСКАЯ ОШИБКА: %v", fault)
	t.stop()
}

// safely выполняет fn, превращая панику в ошибку
func safely(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if e, ok := r.(error); ok {
				err = fmt.Errorf("panic: %w", e)
				return
			}
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
