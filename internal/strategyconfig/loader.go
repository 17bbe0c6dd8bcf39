package strategyconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/wonny/vantage/backend/internal/contracts"
)

// Load reads a strategy YAML file. KnownFields(true) makes typos and
// stale fields fail immediately instead of silently using defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate %s: %w", path, err)
	}

	return &cfg, nil
}

// LoadOrDefault loads <dir>/<strategy>.yaml, falling back to the
// built-in defaults when the file does not exist.
func LoadOrDefault(dir string, strategy contracts.Strategy) (*Config, error) {
	path := filepath.Join(dir, strings.ToLower(string(strategy))+".yaml")

	if _, err := os.Stat(path); os.IsNotExist(err) {
		switch strategy {
		case contracts.StrategySEPA:
			return DefaultSEPA(), nil
		case contracts.StrategyQM:
			return DefaultQM(), nil
		default:
			return nil, fmt.Errorf("unknown strategy %q", strategy)
		}
	}

	return Load(path)
}

// Hash generates a SHA-256 hash of the config from canonical JSON.
// Stored with every persisted scan so results stay attributable to
// the exact constants that produced them.
func Hash(cfg *Config) (string, error) {
	jsonBytes, err := json.Marshal(cfg)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(jsonBytes)
	return hex.EncodeToString(sum[:]), nil
}

// HashPair hashes both strategies' configs together.
func HashPair(a, b *Config) (string, error) {
	ha, err := Hash(a)
	if err != nil {
		return "", err
	}
	hb, err := Hash(b)
	if err != nil {
		return "", err
	}
	sum := sha256.Sum256([]byte(ha + hb))
	return hex.EncodeToString(sum[:])[:16], nil
}
