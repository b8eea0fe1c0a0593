package physics

import (
	"sync"
	"time"
)

// PhysicsConfig содержит настройки для физики
type PhysicsConfig struct {
	// StepRate - частота шага симуляции (шагов в секунду)
	StepRate int `yaml:"step_rate" json:"step_rate"`

	// BlockDistance - полуразмер окна вокруг тела, в котором загружаются коллайдеры блоков
	BlockDistance float64 `yaml:"block_distance" json:"block_distance"`

	// AirResistanceEnabled - включает сопротивление воздуха
	AirResistanceEnabled bool `yaml:"air_resistance" json:"air_resistance"`

	// AirDensity - плотность воздуха, кг/м³
	AirDensity float64 `yaml:"air_density" json:"air_density"`

	// Gravity - ускорение свободного падения по оси Y
	Gravity float64 `yaml:"gravity" json:"gravity"`

	// SyncEveryTicks - как часто (в тиках хоста) тело отправляет состояние клиентам
	SyncEveryTicks int `yaml:"sync_every_ticks" json:"sync_every_ticks"`

	// MaxBehindSteps - на сколько шагов поток может отстать, прежде чем дедлайн будет сброшен
	MaxBehindSteps int `yaml:"max_behind_steps" json:"max_behind_steps"`

	// JoinTimeoutMs - сколько ждать остановки потока физики
	JoinTimeoutMs int `yaml:"join_timeout_ms" json:"join_timeout_ms"`

	// DefaultMass - масса нового тела
	DefaultMass float64 `yaml:"default_mass" json:"default_mass"`

	// DefaultDragCoefficient - коэффициент сопротивления нового тела
	DefaultDragCoefficient float64 `yaml:"default_drag_coefficient" json:"default_drag_coefficient"`

	// DefaultFriction - трение нового тела
	DefaultFriction float64 `yaml:"default_friction" json:"default_friction"`

	// DefaultRestitution - коэффициент упругости нового тела
	DefaultRestitution float64 `yaml:"default_restitution" json:"default_restitution"`
}

// GlobalPhysicsConfig - глобальная конфигурация физики
var GlobalPhysicsConfig *PhysicsConfig
var configMutex sync.RWMutex

// DefaultPhysicsConfig возвращает конфигурацию по умолчанию
func DefaultPhysicsConfig() *PhysicsConfig {
	return &PhysicsConfig{
		StepRate:               60,
		BlockDistance:          1.0,
		AirResistanceEnabled:   true,
		AirDensity:             1.2,
		Gravity:                -9.81,
		SyncEveryTicks:         1,
		MaxBehindSteps:         5,
		JoinTimeoutMs:          2000,
		DefaultMass:            1.0,
		DefaultDragCoefficient: 0.05,
		DefaultFriction:        0.5,
		DefaultRestitution:     0.5,
	}
}

// JoinTimeout возвращает таймаут остановки потока как Duration
func (c *PhysicsConfig) JoinTimeout() time.Duration {
	return time.Duration(c.JoinTimeoutMs) * time.Millisecond
}

// StepInterval возвращает длительность одного шага
func (c *PhysicsConfig) StepInterval() time.Duration {
	if c.StepRate <= 0 {
		return 0
	}
	return time.Second / time.Duration(c.StepRate)
}

// GetPhysicsConfig возвращает текущую конфигурацию физики
func GetPhysicsConfig() *PhysicsConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()

	if GlobalPhysicsConfig == nil {
		return DefaultPhysicsConfig()
	}

	// Создаем копию, чтобы избежать гонок данных
	config := *GlobalPhysicsConfig
	return &config
}

// SetPhysicsConfig устанавливает новую конфигурацию физики
func SetPhysicsConfig(config *PhysicsConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()

	newConfig := *config
	GlobalPhysicsConfig = &newConfig
}

// Initialize инициализирует глобальную конфигурацию физики
func Initialize() {
	if GlobalPhysicsConfig == nil {
		SetPhysicsConfig(DefaultPhysicsConfig())
	}
}

func init() {
	Initialize()
}
