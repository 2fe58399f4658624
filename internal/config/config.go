// Package config loads the engine's TOML key-value configuration (spec
// §6) and exposes it behind a mutex-guarded wrapper so several
// goroutines can read one config while it may be replaced, the same
// pattern stojg-playlist-sorter uses to let its TUI and GA goroutine
// share one config.
package config

import (
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
)

// LogLevel is one of the eight thresholds spec §6 names for
// std_message_level/file_message_level.
type LogLevel string

const (
	LogNone    LogLevel = "none"
	LogFatal   LogLevel = "fatal"
	LogError   LogLevel = "error"
	LogWarning LogLevel = "warning"
	LogInfo    LogLevel = "info"
	LogDebug   LogLevel = "debug"
	LogTrace   LogLevel = "trace"
	LogAll     LogLevel = "all"
)

// SamplerChoice selects the scheduler's training-index draw.
type SamplerChoice string

const (
	SamplerUniform SamplerChoice = "Uniform"
	SamplerPER     SamplerChoice = "PER"
)

// ControlSizeMethod selects how finalize_generation reins in network
// growth once genomes start consistently beating the naive baseline.
type ControlSizeMethod string

const (
	ControlReduceMutationRate ControlSizeMethod = "reduce_mutation_rate"
	ControlReduceAddMutation  ControlSizeMethod = "reduce_add_mutation"
	ControlNone               ControlSizeMethod = "none"
)

// Config is the full option table of spec §6, one field per recognized
// key. Fields use the same toml tag naming as the key names themselves
// so the file on disk reads identically to the spec's table.
type Config struct {
	StdMessageLevel  LogLevel `toml:"std_message_level"`
	FileMessageLevel LogLevel `toml:"file_message_level"`
	OutputDirectory  string   `toml:"output_directory"`
	WriteToFile      bool     `toml:"write_to_file"`
	MaxHeaderLength  int      `toml:"max_header_length"`
	MaxMessageLength int      `toml:"max_message_length"`

	TimeOffset int `toml:"time_offset"`

	NumValidationSets int `toml:"num_validation_sets"`
	NumTrainingSets   int `toml:"num_training_sets"`
	NumTestSets       int `toml:"num_test_sets"`

	GetTrainDataBy               SamplerChoice `toml:"get_train_data_by"`
	StartScoreTrackingGeneration int64         `toml:"start_score_tracking_generation"`
	Temperature                  float64       `toml:"temperature"`

	BPIterations int     `toml:"bp_iterations"`
	LearningRate float64 `toml:"learning_rate"`

	RNNType           string `toml:"rnn_type"`
	NumHiddenLayers   int    `toml:"num_hidden_layers"`
	MaxRecurrentDepth int    `toml:"max_recurrent_depth"`
	MinRecurrentDepth int    `toml:"min_recurrent_depth"`

	Stochastic bool `toml:"stochastic"`

	RepopulationMethod    string `toml:"repopulation_method"`
	IslandRankingMethod   string `toml:"island_ranking_method"`
	RepopulationFrequency int64  `toml:"repopulation_frequency"`
	IslandsToExterminate  int    `toml:"islands_to_exterminate"`
	RepeatExtinction      bool   `toml:"repeat_extinction"`

	TransferLearning        bool   `toml:"transfer_learning"`
	TransferLearningVersion string `toml:"transfer_learning_version"`
	SeedStirs               int    `toml:"seed_stirs"`
	TLEpigeneticWeights     bool   `toml:"tl_epigenetic_weights"`

	ControlSizeMethod ControlSizeMethod `toml:"control_size_method"`
	CompareWithNaive  bool              `toml:"compare_with_naive"`
}

// DefaultConfig mirrors the original's documented defaults where spec
// §6 names one, and otherwise a conservative baseline.
func DefaultConfig() Config {
	return Config{
		StdMessageLevel:  LogInfo,
		FileMessageLevel: LogInfo,
		OutputDirectory:  "./output",
		WriteToFile:      true,
		MaxHeaderLength:  128,
		MaxMessageLength: 1024,

		TimeOffset: 1,

		NumValidationSets: 10,
		NumTrainingSets:   20,
		NumTestSets:       1,

		GetTrainDataBy:               SamplerUniform,
		StartScoreTrackingGeneration: 0,
		Temperature:                  1.0,

		BPIterations: 50,
		LearningRate: 0.001,

		RNNType:           "lstm",
		NumHiddenLayers:   1,
		MaxRecurrentDepth: 10,
		MinRecurrentDepth: 1,

		RepopulationMethod:    "best-parents",
		IslandRankingMethod:   "erase-worst",
		RepopulationFrequency: 20,
		IslandsToExterminate:  1,
		RepeatExtinction:      false,

		SeedStirs:           10,
		TLEpigeneticWeights: false,

		ControlSizeMethod: ControlReduceAddMutation,
		CompareWithNaive:  true,
	}
}

// Load reads path and unmarshals it over DefaultConfig, so an absent
// file or a partial one still yields a usable configuration. A missing
// file is not an error (mirrors stojg-playlist-sorter's LoadConfig
// fallback); a malformed file is.
func Load(path string) (Config, error) {
	cfg := DefaultConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, errors.Wrapf(err, "config: reading %s", path)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, errors.Wrapf(err, "config: parsing %s", path)
	}
	return cfg, nil
}

// Save writes cfg to path as TOML, creating the file if needed.
func Save(path string, cfg Config) error {
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "config: creating %s", path)
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return errors.Wrapf(err, "config: encoding %s", path)
	}
	return nil
}

// Shared wraps Config with a RWMutex: Get hands any number of readers
// a copy of the current config and Update replaces it as a whole — the
// exact SharedConfig shape stojg-playlist-sorter uses to let its TUI
// and GA goroutine see the same live config. The controller reads its
// backprop settings through Get. The strategy's mutation and crossover
// rates are not part of Config; they live in speciation.Config.
type Shared struct {
	mu  sync.RWMutex
	cfg Config
}

// NewShared wraps an initial Config.
func NewShared(cfg Config) *Shared {
	return &Shared{cfg: cfg}
}

// Get returns a copy of the current config.
func (s *Shared) Get() Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Update replaces the current config.
func (s *Shared) Update(cfg Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// String implements fmt.Stringer for debug logging.
func (c Config) String() string {
	return fmt.Sprintf("Config{rnn_type=%s bp_iterations=%d learning_rate=%g num_training_sets=%d}",
		c.RNNType, c.BPIterations, c.LearningRate, c.NumTrainingSets)
}
