package physics

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultPhysicsConfig(t *testing.T) {
	cfg := DefaultPhysicsConfig()

	if cfg.StepRate != 60 {
		t.Errorf("expected step rate 60, got %d", cfg.StepRate)
	}
	if cfg.StepInterval() != time.Second/60 {
		t.Errorf("unexpected step interval %v", cfg.StepInterval())
	}
	if cfg.JoinTimeout() != 2*time.Second {
		t.Errorf("unexpected join timeout %v", cfg.JoinTimeout())
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should be valid: %v", err)
	}
}

func TestGetPhysicsConfig_ReturnsCopy(t *testing.T) {
	original := GetPhysicsConfig()
	defer SetPhysicsConfig(original)

	cfg := GetPhysicsConfig()
	cfg.StepRate = 5
	if GetPhysicsConfig().StepRate == 5 {
		t.Error("mutating the returned config must not change the global one")
	}

	SetPhysicsConfig(cfg)
	cfg.StepRate = 7
	if got := GetPhysicsConfig().StepRate; got != 5 {
		t.Errorf("expected stored step rate 5, got %d", got)
	}
}

func TestLoad_OverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physics.yaml")
	data := "step_rate: 30\nair_resistance: false\ngravity: -20\n"
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.StepRate != 30 || cfg.AirResistanceEnabled || cfg.Gravity != -20 {
		t.Errorf("overrides not applied: %+v", cfg)
	}
	if cfg.BlockDistance != DefaultPhysicsConfig().BlockDistance {
		t.Errorf("missing keys should keep defaults, got block distance %f", cfg.BlockDistance)
	}
}

func TestLoad_RejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{"zero step rate", "step_rate: 0\n"},
		{"unknown key", "stepRate: 60\n"},
		{"wrong type", "air_resistance: maybe\n"},
		{"restitution above one", "default_restitution: 1.5\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "physics.yaml")
			if err := os.WriteFile(path, []byte(tt.data), 0644); err != nil {
				t.Fatal(err)
			}
			if _, err := Load(path); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("expected ErrInvalidConfig, got %v", err)
			}
		})
	}
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "physics.yaml")
	cfg := DefaultPhysicsConfig()
	cfg.StepRate = 120
	cfg.BlockDistance = 2

	if err := Save(path, cfg); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if *loaded != *cfg {
		t.Errorf("expected %+v, got %+v", cfg, loaded)
	}
}

func TestSave_RejectsInvalid(t *testing.T) {
	cfg := DefaultPhysicsConfig()
	cfg.StepRate = -1
	if err := Save(filepath.Join(t.TempDir(), "bad.yaml"), cfg); !errors.Is(err, ErrInvalidConfig) {
		t.Errorf("expected ErrInvalidConfig, got %v", err)
	}
}
