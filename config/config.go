// Package config loads and validates YAML experiment descriptions,
// translating them into the option structs of the other packages.
package config

import (
	"fmt"
	"os"

	kkl "github.com/monabf/learn-observe-KKL"
	"github.com/monabf/learn-observe-KKL/nn"
	"github.com/monabf/learn-observe-KKL/observer"
	"github.com/monabf/learn-observe-KKL/ode"
	"github.com/monabf/learn-observe-KKL/sample"
	"github.com/monabf/learn-observe-KKL/system"
	"github.com/monabf/learn-observe-KKL/train"
	"gopkg.in/yaml.v3"
)

// Sampling describes the data-generation stage.
type Sampling struct {
	// Limits bound the sampled region of state space, one [low, high]
	// pair per state dimension.
	Limits [][2]float64 `yaml:"limits"`
	// Method is "lhs" or "uniform".
	Method     string  `yaml:"method"`
	NumSamples int     `yaml:"num_samples"`
	K          float64 `yaml:"k"`
	NoiseStd   float64 `yaml:"noise_std"`
	ValFrac    float64 `yaml:"val_frac"`
}

// Trainer describes the optimization stage.
type Trainer struct {
	Method        string                 `yaml:"method"`
	BatchSize     int                    `yaml:"batch_size"`
	MaxEpochs     int                    `yaml:"max_epochs"`
	CheckValEvery int                    `yaml:"check_val_every"`
	PDEWeight     float64                `yaml:"pde_weight"`
	Optimizer     nn.AdamOptions         `yaml:"optimizer"`
	Scheduler     train.PlateauOptions   `yaml:"scheduler"`
	Stopper       train.EarlyStopOptions `yaml:"stopper"`
}

// Config is one complete experiment: system, observer, data and trainer.
type Config struct {
	System     string  `yaml:"system"`
	WC         float64 `yaml:"wc"`
	DimZ       int     `yaml:"dim_z"`
	Activation string  `yaml:"activation"`
	NumHL      int     `yaml:"num_hl"`
	SizeHL     int     `yaml:"size_hl"`
	Seed       int64   `yaml:"seed"`

	Solver   ode.Options `yaml:"solver"`
	Sampling Sampling    `yaml:"sampling"`
	Trainer  Trainer     `yaml:"trainer"`

	// CheckpointPath and RunStorePath locate the persisted artifacts.
	CheckpointPath string `yaml:"checkpoint_path"`
	RunStorePath   string `yaml:"run_store_path"`
}

// Default returns the reference Reversed Duffing experiment.
func Default() Config {
	return Config{
		System:     "Reversed_Duffing_Oscillator",
		WC:         0.15,
		Activation: "silu",
		NumHL:      5,
		SizeHL:     50,
		Seed:       0,
		Solver:     ode.DefaultOptions(),
		Sampling: Sampling{
			Limits:     [][2]float64{{-1, 1}, {-1, 1}},
			Method:     "lhs",
			NumSamples: 5000,
			K:          10,
			ValFrac:    0.2,
		},
		Trainer: Trainer{
			Method:        "T_star",
			BatchSize:     100,
			MaxEpochs:     100,
			CheckValEvery: 3,
			PDEWeight:     1e-1,
			Optimizer:     nn.DefaultAdamOptions(),
			Scheduler:     train.DefaultPlateauOptions(),
			Stopper:       train.DefaultEarlyStopOptions(),
		},
		CheckpointPath: "observer.gob",
		RunStorePath:   "runs.db",
	}
}

// Load reads a YAML config, layering the file's fields over Default.
func Load(path string) (Config, error) {
	cfg := Default()
	raw, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Save writes the config as YAML.
func (c Config) Save(path string) error {
	raw, err := yaml.Marshal(c)
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

// Validate checks the cross-field constraints that the individual option
// structs cannot see.
func (c Config) Validate() error {
	sys, err := system.FromName(c.System)
	if err != nil {
		return err
	}
	dimX, _ := sys.Dims()
	if len(c.Sampling.Limits) != dimX {
		return &kkl.ConfigError{
			Field:  "sampling.limits",
			Reason: fmt.Sprintf("need %d [low, high] pairs for %s, got %d", dimX, sys.Name(), len(c.Sampling.Limits)),
		}
	}
	for i, lim := range c.Sampling.Limits {
		if lim[0] >= lim[1] {
			return &kkl.ConfigError{
				Field:  "sampling.limits",
				Reason: fmt.Sprintf("dimension %d: low %v >= high %v", i, lim[0], lim[1]),
			}
		}
	}
	if c.Sampling.NumSamples <= 0 {
		return &kkl.ConfigError{Field: "sampling.num_samples", Reason: "must be positive"}
	}
	if c.Sampling.ValFrac < 0 || c.Sampling.ValFrac >= 1 {
		return &kkl.ConfigError{Field: "sampling.val_frac", Reason: "must be in [0, 1)"}
	}
	if _, err := sample.ParseSamplingMethod(c.Sampling.Method); err != nil {
		return err
	}
	if _, err := nn.ParseActivation(c.Activation); err != nil {
		return err
	}
	if _, err := train.ParseTarget(c.Trainer.Method); err != nil {
		return err
	}
	if c.WC <= 0 {
		return &kkl.ConfigError{Field: "wc", Reason: "must be positive"}
	}
	return nil
}

// Observer constructs the configured observer, wired to its system.
func (c Config) Observer() (*observer.LuenbergerObserver, error) {
	sys, err := system.FromName(c.System)
	if err != nil {
		return nil, err
	}
	dimX, dimY := sys.Dims()

	act, err := nn.ParseActivation(c.Activation)
	if err != nil {
		return nil, err
	}
	target, err := train.ParseTarget(c.Trainer.Method)
	if err != nil {
		return nil, err
	}
	method := observer.Supervised
	if target == train.Joint {
		method = observer.Autoencoder
	}

	obs, err := observer.New(observer.Config{
		DimX:       dimX,
		DimY:       dimY,
		DimZ:       c.DimZ,
		WC:         c.WC,
		Method:     method,
		Activation: act,
		NumHL:      c.NumHL,
		SizeHL:     c.SizeHL,
		Solver:     c.Solver,
		Seed:       c.Seed,
	})
	if err != nil {
		return nil, err
	}
	if err := obs.SetDynamics(sys); err != nil {
		return nil, err
	}
	return obs, nil
}

// TrainOptions translates the trainer section into train.Options.
func (c Config) TrainOptions() (train.Options, error) {
	target, err := train.ParseTarget(c.Trainer.Method)
	if err != nil {
		return train.Options{}, err
	}
	return train.Options{
		Target:        target,
		BatchSize:     c.Trainer.BatchSize,
		MaxEpochs:     c.Trainer.MaxEpochs,
		CheckValEvery: c.Trainer.CheckValEvery,
		Optimizer:     c.Trainer.Optimizer,
		Scheduler:     c.Trainer.Scheduler,
		Stopper:       c.Trainer.Stopper,
		PDEWeight:     c.Trainer.PDEWeight,
		Seed:          c.Seed,
	}, nil
}

// SamplingMethod parses the sampling section's method field.
func (c Config) SamplingMethod() (sample.SamplingMethod, error) {
	return sample.ParseSamplingMethod(c.Sampling.Method)
}
