package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds the Execute-stage occupancy, in cycles, of each
// instruction class.
type TimingConfig struct {
	// ALULatency covers add, addi, sub and nop. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency"`

	// MultiplyLatency is the latency of mul. Default: 2 cycles.
	MultiplyLatency uint64 `json:"multiply_latency"`

	// BranchLatency covers beq, bne and ble. Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency"`

	// JumpLatency is the latency of jmp. Default: 1 cycle.
	JumpLatency uint64 `json:"jump_latency"`

	// LoadLatency is the address-generation latency of lw.
	// The memory access itself happens in the Memory stage. Default: 1 cycle.
	LoadLatency uint64 `json:"load_latency"`

	// StoreLatency is the address-generation latency of sw. Default: 1 cycle.
	StoreLatency uint64 `json:"store_latency"`
}

// DefaultTimingConfig returns the classic 5-stage timing: every class
// completes Execute in one cycle except multiply.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:      1,
		MultiplyLatency: 2,
		BranchLatency:   1,
		JumpLatency:     1,
		LoadLatency:     1,
		StoreLatency:    1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file.
// Keys missing from the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.JumpLatency == 0 {
		return fmt.Errorf("jump_latency must be > 0")
	}
	if c.LoadLatency == 0 {
		return fmt.Errorf("load_latency must be > 0")
	}
	if c.StoreLatency == 0 {
		return fmt.Errorf("store_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
