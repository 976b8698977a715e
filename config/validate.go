package config

import (
	"fmt"
	"strings"
)

// Validate rejects configurations the node cannot safely run with.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.RPCAddress) == "" {
		return fmt.Errorf("config: RPCAddress must not be empty")
	}
	if strings.TrimSpace(c.DataDir) == "" {
		return fmt.Errorf("config: DataDir must not be empty")
	}
	if c.MaxLTVBps == 0 || c.MaxLTVBps > 10_000 {
		return fmt.Errorf("config: MaxLTVBps must be within (0, 10000], got %d", c.MaxLTVBps)
	}
	return nil
}
