package config

import (
	"fmt"
	"strings"
)

// Validate performs business-rule validation on the loaded configuration.
// It must be called after loading; Load calls it automatically.
func (c *Config) Validate() error {
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 characters (got %d)", len(c.Auth.JWTSecret))
	}
	if strings.TrimSpace(c.Auth.TenantHeader) == "" {
		return fmt.Errorf("auth.tenant_header must not be empty")
	}

	if err := c.Workflow.validate(); err != nil {
		return fmt.Errorf("workflow: %w", err)
	}

	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with / (got %q)", c.Metrics.Path)
	}

	if c.RateLimit.MutationsPerMinute < 0 {
		return fmt.Errorf("rate_limit.mutations_per_minute must be >= 0 (got %d)", c.RateLimit.MutationsPerMinute)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return fmt.Errorf("log.format must be json or text (got %q)", c.Log.Format)
	}

	return nil
}

func (w *WorkflowConfig) validate() error {
	if w.MaxDepth < 0 {
		return fmt.Errorf("max_depth must be >= 0 (got %d)", w.MaxDepth)
	}
	if w.MoveRetries < 0 || w.MoveRetries > 5 {
		return fmt.Errorf("move_retries must be in [0, 5] (got %d)", w.MoveRetries)
	}
	if w.MinPositionGap <= 0 {
		return fmt.Errorf("min_position_gap must be > 0 (got %v)", w.MinPositionGap)
	}
	if w.PositionStep <= w.MinPositionGap {
		return fmt.Errorf("position_step must be greater than min_position_gap (got %v)", w.PositionStep)
	}
	if w.MoveTimeout <= 0 {
		return fmt.Errorf("move_timeout must be > 0 (got %v)", w.MoveTimeout)
	}
	return nil
}
