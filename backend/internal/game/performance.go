package game

import (
	"sync"
	"time"
)

// Severity - уровень медленного выполнения
type Severity int

const (
	SeverityOK Severity = iota
	SeverityWarning
	SeverityCritical
)

// PerformanceMonitor отслеживает время выполнения систем тикера и шагов пространств
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	// Настройки мониторинга
	metricsWindow     int           // Количество последних выполнений для усреднения
	warningThreshold  time.Duration // Порог предупреждения
	criticalThreshold time.Duration // Критический порог
}

// SystemMetrics метрики производительности системы или пространства
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	if windowSize <= 0 {
		windowSize = 1
	}
	return &PerformanceMonitor{
		systemMetrics:     make(map[string]*SystemMetrics),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}
}

func (pm *PerformanceMonitor) initSystemMetrics(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if _, exists := pm.systemMetrics[name]; exists {
		return
	}
	pm.systemMetrics[name] = &SystemMetrics{
		Name:        name,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) forget(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()
	delete(pm.systemMetrics, name)
}

// recordExecution сохраняет время выполнения и возвращает уровень задержки
func (pm *PerformanceMonitor) recordExecution(name string, executionTime time.Duration) Severity {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[name]
	if !exists {
		return SeverityOK
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++
	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}

	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow
	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}
	pm.recalculateAverage(metrics)

	switch {
	case pm.warningThreshold <= 0:
		return SeverityOK
	case executionTime > pm.criticalThreshold:
		return SeverityCritical
	case executionTime > pm.warningThreshold:
		return SeverityWarning
	}
	return SeverityOK
}

func (pm *PerformanceMonitor) recordError(name string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[name]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}
	if limit == 0 {
		return
	}

	var total time.Duration
	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
	}
	metrics.AverageTime = total / time.Duration(limit)
}

// Metrics возвращает копию метрик по имени
func (pm *PerformanceMonitor) Metrics(name string) (SystemMetrics, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	metrics, exists := pm.systemMetrics[name]
	if !exists {
		return SystemMetrics{}, false
	}
	snapshot := *metrics
	snapshot.recentTimes = nil
	return snapshot, true
}

// GetSystemsStats возвращает метрики всех отслеживаемых имен
func (pm *PerformanceMonitor) GetSystemsStats() map[string]interface{} {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	systemsStats := make(map[string]interface{}, len(pm.systemMetrics))
	for name, metrics := range pm.systemMetrics {
		systemsStats[name] = map[string]interface{}{
			"last_execution_time": metrics.LastExecutionTime,
			"average_time":        metrics.AverageTime,
			"max_time":            metrics.MaxTime,
			"total_executions":    metrics.TotalExecutions,
			"errors":              metrics.Errors,
		}
	}
	return systemsStats
}
