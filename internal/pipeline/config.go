package pipeline

import (
	"fmt"

	"github.com/ximaera/fb2lingo/internal/metadata"
	"github.com/ximaera/fb2lingo/internal/reassembler"
	"github.com/ximaera/fb2lingo/internal/scheduler"
)

// Config holds everything a translation run needs.
type Config struct {
	// IO Paths
	InputPath  string
	OutputPath string
	LogPath    string

	// Backend
	Provider    metadata.Provider
	APIKey      string
	Model       string
	BaseURL     string
	Temperature float64

	// Processing Parameters
	BatchSize int
	Workers   int
	QPS       int
	Placement reassembler.Placement

	// Languages. SourceLang may be "auto".
	SourceLang string
	TargetLang string

	// Glossary maps source names to target names. GlossaryPath is read
	// when Glossary is empty.
	Glossary     map[string]string
	GlossaryPath string

	// Overwrite replaces an existing output file without asking.
	Overwrite bool
	// KeepExisting writes to a free sibling path instead of skipping the
	// run when overwriting an existing output is declined.
	KeepExisting bool

	// Callbacks
	OnProgress func(scheduler.Progress)

	// OnConfirmOverwrite is called when the output file exists. It returns
	// true if the file may be replaced.
	OnConfirmOverwrite func(path string) bool
}

const (
	MinWorkers       = 1
	MaxWorkers       = 20
	MaxBatchSize     = 500
	DefaultBatchSize = 100
	DefaultWorkers   = 3
	MaxTemperature   = 2.0
)

func ClampWorkers(value int) (int, bool) {
	if value < MinWorkers {
		return MinWorkers, true
	}
	if value > MaxWorkers {
		return MaxWorkers, true
	}
	return value, false
}

// Normalize fills defaults, applies safe bounds and returns any adjustments.
func (c Config) Normalize() (Config, []string) {
	var notes []string
	if c.Provider == "" {
		c.Provider = metadata.ProviderOpenAI
	}
	if c.Model == "" {
		c.Model = metadata.DefaultModel(c.Provider)
	}
	if c.Placement == "" {
		c.Placement = reassembler.PlacementReplace
	}
	if clamped, changed := ClampWorkers(c.Workers); changed {
		notes = append(notes, fmt.Sprintf("workers clamped from %d to %d (max %d)", c.Workers, clamped, MaxWorkers))
		c.Workers = clamped
	}
	if c.BatchSize > MaxBatchSize {
		notes = append(notes, fmt.Sprintf("batch-size clamped from %d to %d (max %d)", c.BatchSize, MaxBatchSize, MaxBatchSize))
		c.BatchSize = MaxBatchSize
	}
	return c, notes
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.BatchSize <= 0 {
		return fmt.Errorf("batch size must be greater than 0, got %d", c.BatchSize)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("workers must be greater than 0, got %d", c.Workers)
	}
	if c.QPS < 0 {
		return fmt.Errorf("qps must be 0 or greater, got %d", c.QPS)
	}
	if c.Temperature < 0 || c.Temperature > MaxTemperature {
		return fmt.Errorf("temperature must be between 0 and %.1f, got %g", MaxTemperature, c.Temperature)
	}
	if _, err := metadata.ParseProvider(string(c.Provider)); err != nil {
		return err
	}
	if _, err := reassembler.ParsePlacement(string(c.Placement)); err != nil {
		return err
	}
	if c.APIKey == "" {
		return fmt.Errorf("API key is required")
	}
	return nil
}
