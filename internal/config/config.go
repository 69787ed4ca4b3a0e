// Package config holds the run configuration of the civil-violence model:
// defaults, YAML loading and validation.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/talgya/unrest/internal/agents"
)

// ErrInvalidConfiguration is returned for out-of-domain parameters.
var ErrInvalidConfiguration = errors.New("invalid configuration")

// BacklogPolicy decides what happens to arrested citizens the jail has no
// room for yet.
type BacklogPolicy string

const (
	// BacklogRetry leaves them fully active; admission is retried every tick
	// in original arrest order.
	BacklogRetry BacklogPolicy = "retry"
	// BacklogHold freezes them until admitted: no decisions, no movement,
	// and cops ignore them.
	BacklogHold BacklogPolicy = "hold"
)

// Population gives explicit agent counts, overriding the density-derived ones.
type Population struct {
	Citizens int `yaml:"citizens" json:"citizens"`
	Cops     int `yaml:"cops" json:"cops"`
}

// Config is the immutable configuration of one run.
type Config struct {
	Width  int  `yaml:"width" json:"width"`
	Height int  `yaml:"height" json:"height"`
	Wrap   bool `yaml:"wrap" json:"wrap"`

	GridDensity float64     `yaml:"grid_density" json:"grid_density"` // Share of cells occupied
	Ratio       float64     `yaml:"ratio" json:"ratio"`               // Citizen share of the non-block population
	Barricade   int         `yaml:"barricade" json:"barricade"`       // Number of blocks
	Population  *Population `yaml:"population,omitempty" json:"population,omitempty"`

	CitizenVision int `yaml:"citizen_vision" json:"citizen_vision"`
	CopVision     int `yaml:"cop_vision" json:"cop_vision"`

	Legitimacy         float64 `yaml:"legitimacy" json:"legitimacy"`
	MaxJailTerm        int     `yaml:"max_jail_term" json:"max_jail_term"`
	JailCapacity       int     `yaml:"jail_capacity" json:"jail_capacity"`
	ActiveThreshold    float64 `yaml:"active_threshold" json:"active_threshold"`
	ArrestProbConstant float64 `yaml:"arrest_prob_constant" json:"arrest_prob_constant"`

	Movement      bool          `yaml:"movement" json:"movement"`
	DirectionBias string        `yaml:"direction_bias" json:"direction_bias"`
	Environment   string        `yaml:"environment" json:"environment"`
	Backlog       BacklogPolicy `yaml:"backlog" json:"backlog"`

	MaxIters int   `yaml:"max_iters" json:"max_iters"`
	Seed     int64 `yaml:"seed" json:"seed"` // 0 = draw from entropy

	LogLevel        string `yaml:"log_level" json:"log_level"`
	ReportEvery     int    `yaml:"report_every" json:"report_every"`         // Ticks between report lines, 0 = never
	CheckpointEvery int    `yaml:"checkpoint_every" json:"checkpoint_every"` // Ticks between agent checkpoints, 0 = never
}

// Default returns the parameters of the original model.
func Default() Config {
	return Config{
		Width:              40,
		Height:             40,
		Wrap:               true,
		GridDensity:        0.7,
		Ratio:              0.074,
		Barricade:          4,
		CitizenVision:      7,
		CopVision:          7,
		Legitimacy:         0.8,
		MaxJailTerm:        1000,
		JailCapacity:       50,
		ActiveThreshold:    0.1,
		ArrestProbConstant: 2.3,
		Movement:           true,
		DirectionBias:      "none",
		Environment:        agents.RandomDistribution.String(),
		Backlog:            BacklogRetry,
		MaxIters:           1000,
		LogLevel:           "info",
		ReportEvery:        100,
		CheckpointEvery:    100,
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte) (Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every field against its domain.
func (c Config) Validate() error {
	var problems []string
	fail := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	unit := func(name string, v float64) {
		if math.IsNaN(v) || v < 0 || v > 1 {
			fail("%s must be in [0,1], got %v", name, v)
		}
	}
	positive := func(name string, v int) {
		if v <= 0 {
			fail("%s must be positive, got %d", name, v)
		}
	}

	positive("width", c.Width)
	positive("height", c.Height)
	positive("citizen_vision", c.CitizenVision)
	positive("cop_vision", c.CopVision)
	positive("max_jail_term", c.MaxJailTerm)
	positive("jail_capacity", c.JailCapacity)
	positive("max_iters", c.MaxIters)
	unit("grid_density", c.GridDensity)
	unit("ratio", c.Ratio)
	unit("legitimacy", c.Legitimacy)
	unit("active_threshold", c.ActiveThreshold)
	if c.Barricade < 0 {
		fail("barricade must not be negative, got %d", c.Barricade)
	}
	if math.IsNaN(c.ArrestProbConstant) || c.ArrestProbConstant < 0 {
		fail("arrest_prob_constant must not be negative, got %v", c.ArrestProbConstant)
	}
	if _, err := agents.ParseBias(c.DirectionBias); err != nil {
		fail("%v", err)
	}
	if _, err := agents.ParseEnvironment(c.Environment); err != nil {
		fail("%v", err)
	}
	if c.ReportEvery < 0 || c.CheckpointEvery < 0 {
		fail("report_every and checkpoint_every must not be negative")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		fail("%v", err)
	}
	switch c.Backlog {
	case "", BacklogRetry, BacklogHold:
	default:
		fail("backlog must be %q or %q, got %q", BacklogRetry, BacklogHold, c.Backlog)
	}
	if p := c.Population; p != nil {
		if p.Citizens < 0 || p.Cops < 0 {
			fail("population counts must not be negative, got %d citizens and %d cops", p.Citizens, p.Cops)
		}
	} else if c.Width > 0 && c.Height > 0 && c.freeSpaces() < 0 {
		fail("barricade %d exceeds the %d cells implied by grid_density", c.Barricade, int(float64(c.Width*c.Height)*c.GridDensity))
	}

	if len(problems) > 0 {
		return fmt.Errorf("%w: %s", ErrInvalidConfiguration, strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) freeSpaces() float64 {
	return float64(c.Width*c.Height)*c.GridDensity - float64(c.Barricade)
}

// Spawn derives the population to lay out. Without explicit counts the
// non-block cells are w·h·density − barricade, split by ratio into
// citizens and cops.
func (c Config) Spawn() agents.SpawnConfig {
	sc := agents.SpawnConfig{
		Blocks:        c.Barricade,
		CitizenVision: c.CitizenVision,
		CopVision:     c.CopVision,
		Legitimacy:    c.Legitimacy,
	}
	if c.Population != nil {
		sc.Citizens = c.Population.Citizens
		sc.Cops = c.Population.Cops
		return sc
	}
	free := math.Max(0, c.freeSpaces())
	citizens := free * c.Ratio
	sc.Citizens = int(citizens)
	sc.Cops = int(free - citizens)
	return sc
}

// Bias returns the parsed direction bias. Call after Validate.
func (c Config) Bias() agents.Bias {
	b, _ := agents.ParseBias(c.DirectionBias)
	return b
}

// Env returns the parsed environment. Call after Validate.
func (c Config) Env() agents.Environment {
	e, _ := agents.ParseEnvironment(c.Environment)
	return e
}

// BacklogMode returns the backlog policy, defaulting to retry.
func (c Config) BacklogMode() BacklogPolicy {
	if c.Backlog == "" {
		return BacklogRetry
	}
	return c.Backlog
}

// ParseLevel maps a log level name to its slog level. Empty means info.
func ParseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if s == "" {
		return slog.LevelInfo, nil
	}
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log_level: %w", err)
	}
	return l, nil
}
