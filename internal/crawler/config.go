package crawler

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"time"
)

// fallbackWorkers is used when the host reports no usable CPU count.
const fallbackWorkers = 5

// Config bounds a single crawl run.
type Config struct {
	SeedURL         string
	AllowedDomain   string
	MaxPages        int
	MaxDepth        int
	Workers         int
	PolitenessDelay time.Duration
}

// Validate checks for obviously bad engine configuration.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.SeedURL) == "" {
		errs = append(errs, errors.New("seed url is required"))
	}
	if strings.TrimSpace(c.AllowedDomain) == "" {
		errs = append(errs, errors.New("allowed domain is required"))
	}
	if c.MaxPages <= 0 {
		errs = append(errs, fmt.Errorf("max pages must be > 0 (got %d)", c.MaxPages))
	}
	if c.MaxDepth < 0 {
		errs = append(errs, fmt.Errorf("max depth must be >= 0 (got %d)", c.MaxDepth))
	}
	if c.Workers < 0 {
		errs = append(errs, fmt.Errorf("workers must be >= 0 (got %d)", c.Workers))
	}
	if c.PolitenessDelay < 0 {
		errs = append(errs, fmt.Errorf("politeness delay must be >= 0 (got %s)", c.PolitenessDelay))
	}
	return errors.Join(errs...)
}

// WorkerCount resolves the pool size. Zero means one worker per CPU.
func (c Config) WorkerCount() int {
	if c.Workers > 0 {
		return c.Workers
	}
	if n := runtime.NumCPU(); n > 0 {
		return n
	}
	return fallbackWorkers
}
