package pipeline

// StageKind identifies one of the five pipeline stages.
type StageKind uint8

// Pipeline stages. WriteBack holds the oldest instruction.
const (
	StageFetch StageKind = iota
	StageDecode
	StageExecute
	StageMemory
	StageWriteBack
)

// NumStages is the pipeline depth.
const NumStages = 5

var stageNames = [NumStages]string{"IF", "ID", "EX", "MEM", "WB"}

func (k StageKind) String() string {
	if int(k) < NumStages {
		return stageNames[k]
	}
	return "unknown"
}

// Stage is one pipeline stage: its identity, the slot it holds and whether
// the occupant has finished its work in this stage.
type Stage struct {
	Kind StageKind
	Slot Slot
	Done bool
}

// IsEmpty reports whether the stage holds nothing.
func (s Stage) IsEmpty() bool {
	return s.Slot.IsEmpty()
}

// IsBubble reports whether the stage holds a bubble.
func (s Stage) IsBubble() bool {
	return s.Slot.IsBubble()
}

// IsOccupied reports whether the stage holds an instruction.
func (s Stage) IsOccupied() bool {
	return s.Slot.IsOccupied()
}

// Inflight returns the instruction held by the stage, or nil.
func (s Stage) Inflight() *Inflight {
	if !s.Slot.IsOccupied() {
		return nil
	}
	return s.Slot.Inst
}

func (s *Stage) clear() {
	s.Slot = EmptySlot()
	s.Done = false
}

// fillBubble places a bubble. Bubbles are done on arrival.
func (s *Stage) fillBubble() {
	s.Slot = BubbleSlot()
	s.Done = true
}

func (s *Stage) occupy(inst *Inflight) {
	s.Slot = OccupiedSlot(inst)
	s.Done = false
}

// moveFrom takes the upstream occupant and empties upstream.
func (s *Stage) moveFrom(upstream *Stage) {
	if upstream.IsBubble() {
		s.fillBubble()
	} else {
		s.occupy(upstream.Slot.Inst)
	}
	upstream.clear()
}
