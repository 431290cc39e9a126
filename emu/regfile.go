// Package emu provides the MIPS architectural state and a functional emulator.
package emu

import (
	"errors"
	"log/slog"
)

// NumRegs is the number of general-purpose registers.
const NumRegs = 32

// ErrRegisterLocked is returned when reading a register that an in-flight
// instruction has reserved and not yet published a value for.
var ErrRegisterLocked = errors.New("register locked")

// ErrInvalidRegister is returned for register indices outside R0-R31.
var ErrInvalidRegister = errors.New("invalid register")

// RegFile represents the MIPS register file.
// It contains 32 general-purpose registers and the program counter, plus the
// reservation state used by the pipeline hazard unit: a set of locked
// registers and an overlay holding values published for them before commit.
//
// R0 is not forced to zero; keeping it zero is a software convention.
type RegFile struct {
	// X holds the committed general-purpose registers R0-R31.
	X [NumRegs]int32

	// PC is the program counter.
	PC uint32

	locked     [NumRegs]bool
	overlay    [NumRegs]int32
	hasOverlay [NumRegs]bool

	logger *slog.Logger
}

// RegFileOption is a functional option for configuring the RegFile.
type RegFileOption func(*RegFile)

// WithRegFileLogger sets the logger used to report lock bookkeeping problems.
func WithRegFileLogger(logger *slog.Logger) RegFileOption {
	return func(r *RegFile) {
		r.logger = logger
	}
}

// NewRegFile creates a zeroed register file.
func NewRegFile(opts ...RegFileOption) *RegFile {
	r := &RegFile{}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *RegFile) log() *slog.Logger {
	if r.logger == nil {
		return slog.Default()
	}
	return r.logger
}

func valid(reg uint8) bool {
	return reg < NumRegs
}

// ReadReg reads a committed register value, ignoring any reservation.
// Indices outside R0-R31 read as 0.
func (r *RegFile) ReadReg(reg uint8) int32 {
	if !valid(reg) {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a committed register value, ignoring any reservation.
// Writes to indices outside R0-R31 are ignored.
func (r *RegFile) WriteReg(reg uint8, value int32) {
	if !valid(reg) {
		return
	}
	r.X[reg] = value
}

// Read reads a register through the reservation state. A locked register
// yields its overlay value, or ErrRegisterLocked when none was published.
func (r *RegFile) Read(reg uint8) (int32, error) {
	if !valid(reg) {
		return 0, ErrInvalidRegister
	}
	if r.locked[reg] {
		if !r.hasOverlay[reg] {
			return 0, ErrRegisterLocked
		}
		return r.overlay[reg], nil
	}
	return r.X[reg], nil
}

// CanRead reports whether Read would succeed.
func (r *RegFile) CanRead(reg uint8) bool {
	return valid(reg) && (!r.locked[reg] || r.hasOverlay[reg])
}

// Write writes a register through the reservation state. A locked register
// only receives an overlay value; the committed slot is left untouched.
func (r *RegFile) Write(reg uint8, value int32) {
	if !valid(reg) {
		return
	}
	if r.locked[reg] {
		r.overlay[reg] = value
		r.hasOverlay[reg] = true
		return
	}
	r.X[reg] = value
}

// Lock reserves a register for an in-flight writer. Locking an already
// locked register leaves the reservation unchanged.
func (r *RegFile) Lock(reg uint8) {
	if !valid(reg) {
		return
	}
	if r.locked[reg] {
		r.log().Debug("register already locked", "reg", reg)
		return
	}
	r.locked[reg] = true
}

// Unlock releases a reservation and discards its overlay value.
// Unlocking a register that is not locked is logged and ignored.
func (r *RegFile) Unlock(reg uint8) {
	if !valid(reg) {
		return
	}
	if !r.locked[reg] {
		r.log().Warn("unlock of register that is not locked", "reg", reg)
		return
	}
	r.locked[reg] = false
	r.hasOverlay[reg] = false
	r.overlay[reg] = 0
}

// IsLocked reports whether the register is reserved.
func (r *RegFile) IsLocked(reg uint8) bool {
	return valid(reg) && r.locked[reg]
}

// HasOverlay reports whether a locked register has a published value.
func (r *RegFile) HasOverlay(reg uint8) bool {
	return valid(reg) && r.locked[reg] && r.hasOverlay[reg]
}

// Locked returns the locked register indices in ascending order.
func (r *RegFile) Locked() []uint8 {
	var regs []uint8
	for i, l := range r.locked {
		if l {
			regs = append(regs, uint8(i))
		}
	}
	return regs
}

// Registers returns a copy of the committed registers.
func (r *RegFile) Registers() [NumRegs]int32 {
	return r.X
}

// Reset clears registers, PC and every reservation.
func (r *RegFile) Reset() {
	logger := r.logger
	*r = RegFile{logger: logger}
}
