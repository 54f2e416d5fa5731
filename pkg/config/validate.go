package config

import (
	"fmt"
	"strings"
)

// ValidateCore ensures critical ambient configuration is present. It has
// nothing to say about the simulation parameters themselves (agents,
// policies, cost rates) — those are validated separately by whatever loads
// an orchestrator.Config, since a missing scenario field is a scenario
// author's error, not a deployment misconfiguration.
func (c *Config) ValidateCore() error {
	var missing []string

	if strings.TrimSpace(c.Server.Port) == "" {
		missing = append(missing, "SERVER_PORT")
	}

	switch c.CheckpointStore.Backend {
	case "postgres":
		if strings.TrimSpace(c.CheckpointStore.PostgresURL) == "" {
			missing = append(missing, "CHECKPOINT_POSTGRES_URL")
		}
	case "redis":
		if strings.TrimSpace(c.CheckpointStore.RedisURL) == "" {
			missing = append(missing, "CHECKPOINT_REDIS_URL")
		}
	case "memory":
	default:
		return fmt.Errorf("unknown checkpoint store backend %q", c.CheckpointStore.Backend)
	}

	if len(missing) > 0 {
		return fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}

	return nil
}
