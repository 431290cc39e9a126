package pipeline

import (
	"github.com/iurisilvio/mipssim/emu"
	"github.com/iurisilvio/mipssim/insts"
)

// HazardStats counts the hazards seen by the HazardUnit.
type HazardStats struct {
	// DataHazards counts issue attempts blocked by a source register that
	// has no readable value (read-after-write).
	DataHazards uint64 `json:"data_hazards"`
	// OutputHazards counts issue attempts blocked by a destination register
	// still reserved by an older instruction (write-after-write).
	OutputHazards uint64 `json:"output_hazards"`
	// Forwarded counts operand reads served from a published value.
	Forwarded uint64 `json:"forwarded"`
	// Published counts values made visible before write-back.
	Published uint64 `json:"published"`
}

// HazardUnit decides whether an instruction may leave Decode and, when
// forwarding is enabled, publishes results ahead of write-back.
type HazardUnit struct {
	forwarding bool
	stats      HazardStats
}

// NewHazardUnit creates a new hazard detection unit.
func NewHazardUnit(forwarding bool) *HazardUnit {
	return &HazardUnit{forwarding: forwarding}
}

// Forwarding reports whether results are published before write-back.
func (h *HazardUnit) Forwarding() bool {
	return h.forwarding
}

// Stats returns the hazard counters.
func (h *HazardUnit) Stats() HazardStats {
	return h.stats
}

// CanIssue reports whether every source of inst is readable and its
// destination is free. It never mutates the register file.
func (h *HazardUnit) CanIssue(inst *insts.Instruction, regs *emu.RegFile) bool {
	for _, src := range inst.Sources() {
		if !regs.CanRead(src) {
			h.stats.DataHazards++
			return false
		}
	}

	if dest := inst.Dest(); dest != insts.NoReg && regs.IsLocked(dest) {
		h.stats.OutputHazards++
		return false
	}

	return true
}

// Read returns the operand value of reg. Callers must have checked
// CanIssue first.
func (h *HazardUnit) Read(regs *emu.RegFile, reg uint8) int32 {
	if regs.HasOverlay(reg) {
		h.stats.Forwarded++
	}
	value, _ := regs.Read(reg)
	return value
}

// Publish makes value visible to younger readers of the still-reserved reg.
// It does nothing when forwarding is disabled.
func (h *HazardUnit) Publish(regs *emu.RegFile, reg uint8, value int32) {
	if !h.forwarding || reg == insts.NoReg {
		return
	}
	regs.Write(reg, value)
	h.stats.Published++
}
