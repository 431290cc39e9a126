package pipeline

import "github.com/iurisilvio/mipssim/emu"

// memoryTail is the number of memory log entries kept per snapshot.
const memoryTail = 4

// StageSummary describes the occupant of one stage.
type StageSummary struct {
	Stage       string `json:"stage"`
	State       string `json:"state"`
	PC          uint32 `json:"pc"`
	Instruction string `json:"instruction,omitempty"`
	Bytecode    string `json:"bytecode,omitempty"`
	Done        bool   `json:"done"`
	CyclesLeft  uint64 `json:"cycles_left,omitempty"`
}

// Snapshot is the observable machine state at the end of a cycle.
type Snapshot struct {
	Pipeline              [NumStages]StageSummary `json:"pipeline"`
	Registers             [emu.NumRegs]int32      `json:"registers"`
	Locked                []uint8                 `json:"locked,omitempty"`
	Memory                []emu.Access            `json:"memory"`
	Clock                 uint64                  `json:"clock"`
	PC                    uint32                  `json:"pc"`
	InstructionsCompleted uint64                  `json:"instructions_completed"`
	Throughput            float64                 `json:"throughput"`
}

func summarize(s *Stage) StageSummary {
	summary := StageSummary{
		Stage: s.Kind.String(),
		State: s.Slot.State.String(),
		Done:  s.Done,
	}
	if inst := s.Inflight(); inst != nil {
		summary.PC = inst.PC
		summary.Instruction = inst.String()
		summary.Bytecode = inst.Inst.Bytecode
		if s.Kind == StageExecute {
			summary.CyclesLeft = inst.CyclesLeft
		}
	}
	return summary
}

// Snapshot captures the current machine state.
func (p *Pipeline) Snapshot() Snapshot {
	snap := Snapshot{
		Registers:             p.regFile.Registers(),
		Locked:                p.regFile.Locked(),
		Memory:                p.memory.Tail(memoryTail),
		Clock:                 p.stats.Cycles,
		PC:                    p.regFile.PC,
		InstructionsCompleted: p.stats.Instructions,
		Throughput:            p.stats.Throughput(),
	}
	for i := range p.stages {
		snap.Pipeline[i] = summarize(&p.stages[i])
	}
	return snap
}

// History returns the snapshots recorded after every cycle.
func (p *Pipeline) History() []Snapshot {
	out := make([]Snapshot, len(p.history))
	copy(out, p.history)
	return out
}
