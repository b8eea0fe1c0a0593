package physics

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"
)

// ErrInvalidConfig возвращается, если файл конфигурации не проходит схему
var ErrInvalidConfig = errors.New("invalid physics config")

const configSchemaURL = "physics.schema.json"

// configSchema описывает допустимые значения файла конфигурации.
// Отсутствующие поля берутся из DefaultPhysicsConfig.
const configSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "properties": {
    "step_rate":                {"type": "integer", "minimum": 1, "maximum": 1000},
    "block_distance":           {"type": "number", "minimum": 0, "maximum": 16},
    "air_resistance":           {"type": "boolean"},
    "air_density":              {"type": "number", "minimum": 0},
    "gravity":                  {"type": "number"},
    "sync_every_ticks":         {"type": "integer", "minimum": 1},
    "max_behind_steps":         {"type": "integer", "minimum": 1},
    "join_timeout_ms":          {"type": "integer", "minimum": 0},
    "default_mass":             {"type": "number", "exclusiveMinimum": 0},
    "default_drag_coefficient": {"type": "number", "minimum": 0},
    "default_friction":         {"type": "number", "minimum": 0},
    "default_restitution":      {"type": "number", "minimum": 0, "maximum": 1}
  }
}`

var compiledSchema = jsonschema.MustCompileString(configSchemaURL, configSchema)

// Validate проверяет конфигурацию по схеме
func (c *PhysicsConfig) Validate() error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	return validateJSON(data)
}

func validateJSON(data []byte) error {
	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("decode config: %w", err)
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// Load читает YAML-файл конфигурации поверх значений по умолчанию
func Load(path string) (*PhysicsConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// yaml -> json, чтобы проверить именно то, что написал пользователь
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if raw == nil {
		raw = map[string]any{}
	}
	asJSON, err := json.Marshal(raw)
	if err != nil {
		return nil, fmt.Errorf("convert %s: %w", path, err)
	}
	if err := validateJSON(asJSON); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	cfg := DefaultPhysicsConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Save записывает конфигурацию в YAML
func Save(path string, cfg *PhysicsConfig) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}
