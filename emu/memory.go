package emu

import (
	"errors"
	"fmt"
)

// DefaultMemoryWords is the default data memory size, in words.
const DefaultMemoryWords = 100

// ErrOutOfRange is the sentinel wrapped by every MemoryFault.
var ErrOutOfRange = errors.New("address out of range")

// AccessKind distinguishes loads from stores in the access log.
type AccessKind uint8

// Access kinds.
const (
	AccessLoad AccessKind = iota
	AccessStore
)

func (k AccessKind) String() string {
	if k == AccessStore {
		return "sw"
	}
	return "lw"
}

// MarshalText renders the kind as its mnemonic.
func (k AccessKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText parses "lw" or "sw".
func (k *AccessKind) UnmarshalText(text []byte) error {
	switch string(text) {
	case "lw":
		*k = AccessLoad
	case "sw":
		*k = AccessStore
	default:
		return fmt.Errorf("unknown access kind %q", text)
	}
	return nil
}

// Access is one entry of the memory access log.
type Access struct {
	Kind  AccessKind `json:"kind"`
	Addr  int32      `json:"address"`
	Value int32      `json:"value"`
}

// MemoryFault reports an access outside the configured memory.
type MemoryFault struct {
	Kind AccessKind
	Addr int32
	Size int
}

func (f *MemoryFault) Error() string {
	return fmt.Sprintf("memory fault: %v at %d outside [0, %d)", f.Kind, f.Addr, f.Size)
}

func (f *MemoryFault) Unwrap() error {
	return ErrOutOfRange
}

// Memory is a word-addressed data memory with a chronological access log.
// The log is kept for inspection only.
type Memory struct {
	words []int32
	log   []Access
}

// NewMemory creates a zeroed memory of the given number of words.
// A non-positive size selects DefaultMemoryWords.
func NewMemory(words int) *Memory {
	if words <= 0 {
		words = DefaultMemoryWords
	}
	return &Memory{words: make([]int32, words)}
}

// Size returns the number of words.
func (m *Memory) Size() int {
	return len(m.words)
}

func (m *Memory) check(kind AccessKind, addr int32) error {
	if addr < 0 || int(addr) >= len(m.words) {
		return &MemoryFault{Kind: kind, Addr: addr, Size: len(m.words)}
	}
	return nil
}

// Read loads a word and logs the access.
func (m *Memory) Read(addr int32) (int32, error) {
	if err := m.check(AccessLoad, addr); err != nil {
		return 0, err
	}
	value := m.words[addr]
	m.log = append(m.log, Access{Kind: AccessLoad, Addr: addr, Value: value})
	return value, nil
}

// Write stores a word and logs the access.
func (m *Memory) Write(addr int32, value int32) error {
	if err := m.check(AccessStore, addr); err != nil {
		return err
	}
	m.words[addr] = value
	m.log = append(m.log, Access{Kind: AccessStore, Addr: addr, Value: value})
	return nil
}

// Word returns a word without logging the access.
func (m *Memory) Word(addr int32) (int32, error) {
	if err := m.check(AccessLoad, addr); err != nil {
		return 0, err
	}
	return m.words[addr], nil
}

// Words returns a copy of the whole memory.
func (m *Memory) Words() []int32 {
	out := make([]int32, len(m.words))
	copy(out, m.words)
	return out
}

// Log returns a copy of the access log.
func (m *Memory) Log() []Access {
	out := make([]Access, len(m.log))
	copy(out, m.log)
	return out
}

// Tail returns the last n log entries, oldest first.
func (m *Memory) Tail(n int) []Access {
	if n > len(m.log) {
		n = len(m.log)
	}
	out := make([]Access, n)
	copy(out, m.log[len(m.log)-n:])
	return out
}
