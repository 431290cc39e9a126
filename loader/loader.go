// Package loader provides program loading for the MIPS simulator.
//
// A program is either encoded, one "<32 bits> ; <text>" line per
// instruction, or assembly source that is run through the assembler.
package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/iurisilvio/mipssim/asm"
	"github.com/iurisilvio/mipssim/insts"
)

// Format is the textual form of a program.
type Format uint8

// Program formats.
const (
	FormatEncoded Format = iota
	FormatAssembly
)

func (f Format) String() string {
	if f == FormatAssembly {
		return "assembly"
	}
	return "encoded"
}

// Program represents a loaded program ready for execution.
type Program struct {
	// Path is the file the program was read from, empty for inline text.
	Path string
	// Format is the form of the source text.
	Format Format
	// Lines holds the encoded program lines, one per instruction.
	Lines []string
}

// Load reads a program file. Files ending in .s or .asm are assembled;
// any other file is read as encoded lines.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}

	format := FormatEncoded
	switch strings.ToLower(filepath.Ext(path)) {
	case ".s", ".asm":
		format = FormatAssembly
	}

	prog, err := Parse(string(data), format)
	if err != nil {
		return nil, err
	}
	prog.Path = path
	return prog, nil
}

// Parse builds a program from text in the given format.
func Parse(text string, format Format) (*Program, error) {
	prog := &Program{Format: format}

	if format == FormatAssembly {
		lines, err := asm.Assemble(text)
		if err != nil {
			return nil, fmt.Errorf("failed to assemble program: %w", err)
		}
		prog.Lines = lines
		return prog, nil
	}

	prog.Lines = SplitLines(text)
	return prog, nil
}

// ParseAuto builds a program from text, guessing its format.
func ParseAuto(text string) (*Program, error) {
	return Parse(text, DetectFormat(text))
}

// SplitLines returns the trimmed non-blank lines of text.
func SplitLines(text string) []string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// DetectFormat reports FormatEncoded when the first non-blank line starts
// with a valid instruction word and FormatAssembly otherwise.
func DetectFormat(text string) Format {
	lines := SplitLines(text)
	if len(lines) == 0 {
		return FormatEncoded
	}
	bytecode, _ := insts.SplitLine(lines[0])
	if _, err := insts.ParseWord(bytecode); err != nil {
		return FormatAssembly
	}
	return FormatEncoded
}
