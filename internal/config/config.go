// Package config loads codeflow.toml.
//
// Every setting has a default, so the file is optional. Command-line flags
// are applied on top of the loaded values by the CLI.
//
//	[layout]
//	mode = "layered"
//	direction = "TB"
//	solver_timeout = "5s"
//
//	[sync]
//	debounce = "300ms"
//
//	[cache]
//	backend = "redis"
//	redis_addr = "localhost:6379"
package config

import (
	stderrors "errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"

	"github.com/matzehuels/codeflow/pkg/errors"
)

// FileName is the name looked up in the working directory.
const FileName = "codeflow.toml"

// Cache backends.
const (
	BackendFile  = "file"
	BackendRedis = "redis"
	BackendNone  = "none"
)

// Config is the complete configuration.
type Config struct {
	Layout Layout `toml:"layout"`
	Sync   Sync   `toml:"sync"`
	Cache  Cache  `toml:"cache"`
	Server Server `toml:"server"`
}

// Layout configures the layout compiler.
type Layout struct {
	Mode          string        `toml:"mode" validate:"oneof=layered force stress"`
	Direction     string        `toml:"direction" validate:"oneof=TB BT LR RL"`
	SolverTimeout time.Duration `toml:"solver_timeout" validate:"gt=0"`
	NodeSep       float64       `toml:"node_sep" validate:"gte=0"`
	RankSep       float64       `toml:"rank_sep" validate:"gte=0"`
}

// Sync configures the position sync protocol.
type Sync struct {
	Debounce    time.Duration `toml:"debounce" validate:"gt=0"`
	ReadyDelay  time.Duration `toml:"ready_delay" validate:"gte=0"`
	GuardWindow time.Duration `toml:"guard_window" validate:"gte=0"`
	Autosave    bool          `toml:"autosave"`
}

// Cache configures the layout cache.
type Cache struct {
	Backend       string `toml:"backend" validate:"oneof=file redis none"`
	Dir           string `toml:"dir"`
	RedisAddr     string `toml:"redis_addr" validate:"required_if=Backend redis"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db" validate:"gte=0"`
}

// Server configures codeflow serve.
type Server struct {
	Addr      string `toml:"addr" validate:"required,hostname_port"`
	Workspace string `toml:"workspace"`
	Editor    string `toml:"editor"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Layout: Layout{
			Mode:          "layered",
			Direction:     "TB",
			SolverTimeout: 5 * time.Second,
			NodeSep:       60,
			RankSep:       80,
		},
		Sync: Sync{
			Debounce:    300 * time.Millisecond,
			ReadyDelay:  150 * time.Millisecond,
			GuardWindow: 100 * time.Millisecond,
		},
		Cache: Cache{
			Backend:   BackendFile,
			RedisAddr: "localhost:6379",
		},
		Server: Server{
			Addr:      "127.0.0.1:7420",
			Workspace: ".",
		},
	}
}

// Load reads path on top of the defaults. Unknown keys are an error so that
// typos do not go unnoticed.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, errors.Wrap(errors.ErrCodeFileNotFound, err, "config not found: %s", path)
		}
		return cfg, fmt.Errorf("read config: %w", err)
	}

	md, err := toml.Decode(string(data), &cfg)
	if err != nil {
		return cfg, errors.Wrap(errors.ErrCodeParse, err, "parse %s", filepath.Base(path))
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		return cfg, errors.New(errors.ErrCodeInvalidInput, "unknown config keys: %s", strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Find returns the config file in dir, if there is one.
func Find(dir string) (string, bool) {
	path := filepath.Join(dir, FileName)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return path, true
	}
	return "", false
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks value ranges and enums.
func (c Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !stderrors.As(err, &verrs) {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid config")
	}
	fields := make([]string, len(verrs))
	for i, fe := range verrs {
		fields[i] = strings.ToLower(fe.StructNamespace()[len("Config."):])
	}
	return errors.New(errors.ErrCodeInvalidInput, "invalid config: %s", strings.Join(fields, ", "))
}
