package emu

// EffectiveAddress returns the word address base + offset.
func EffectiveAddress(base, offset int32) int32 {
	return base + offset
}

// LoadStoreUnit implements the MIPS load and store operations.
type LoadStoreUnit struct {
	regFile *RegFile
	memory  *Memory
}

// NewLoadStoreUnit creates a new LoadStoreUnit connected to the given
// register file and memory.
func NewLoadStoreUnit(regFile *RegFile, memory *Memory) *LoadStoreUnit {
	return &LoadStoreUnit{
		regFile: regFile,
		memory:  memory,
	}
}

// LW performs rt = mem[rs + offset].
func (lsu *LoadStoreUnit) LW(rt, rs uint8, offset int32) error {
	addr := EffectiveAddress(lsu.regFile.ReadReg(rs), offset)
	value, err := lsu.memory.Read(addr)
	if err != nil {
		return err
	}
	lsu.regFile.WriteReg(rt, value)
	return nil
}

// SW performs mem[rs + offset] = rt.
func (lsu *LoadStoreUnit) SW(rt, rs uint8, offset int32) error {
	addr := EffectiveAddress(lsu.regFile.ReadReg(rs), offset)
	return lsu.memory.Write(addr, lsu.regFile.ReadReg(rt))
}
