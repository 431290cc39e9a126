// Package pipeline provides the 5-stage pipeline implementation for timing simulation.
package pipeline

// SlotState is the occupancy of a stage slot.
type SlotState uint8

// Slot states.
const (
	// SlotEmpty means the slot holds nothing. A slot is only empty between
	// the shift and the bubble fill of a cycle.
	SlotEmpty SlotState = iota
	// SlotBubble means the slot holds a machine-inserted bubble.
	SlotBubble
	// SlotOccupied means the slot holds a program instruction.
	SlotOccupied
)

func (s SlotState) String() string {
	switch s {
	case SlotBubble:
		return "bubble"
	case SlotOccupied:
		return "occupied"
	default:
		return "empty"
	}
}

// Slot is the latch between two stages. Inst is non-nil only when the slot
// is occupied.
type Slot struct {
	State SlotState
	Inst  *Inflight
}

// EmptySlot returns a slot holding nothing.
func EmptySlot() Slot {
	return Slot{State: SlotEmpty}
}

// BubbleSlot returns a slot holding a bubble.
func BubbleSlot() Slot {
	return Slot{State: SlotBubble}
}

// OccupiedSlot returns a slot holding the given instruction.
func OccupiedSlot(inst *Inflight) Slot {
	return Slot{State: SlotOccupied, Inst: inst}
}

// IsEmpty reports whether the slot holds nothing.
func (s Slot) IsEmpty() bool {
	return s.State == SlotEmpty
}

// IsBubble reports whether the slot holds a bubble.
func (s Slot) IsBubble() bool {
	return s.State == SlotBubble
}

// IsOccupied reports whether the slot holds an instruction.
func (s Slot) IsOccupied() bool {
	return s.State == SlotOccupied
}
