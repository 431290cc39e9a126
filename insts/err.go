package insts

import (
	"errors"
	"fmt"
)

var (
	// ErrMalformed reports a line that is not a 32-character binary word.
	ErrMalformed = errors.New("malformed instruction word")
	// ErrUnknownOpcode reports an opcode outside the instruction set.
	ErrUnknownOpcode = errors.New("unknown opcode")
	// ErrUnknownFunct reports an R-class funct outside the instruction set.
	ErrUnknownFunct = errors.New("unknown funct")
	// ErrNotEncodable reports an instruction whose fields do not fit the encoding.
	ErrNotEncodable = errors.New("instruction not encodable")
)

// DecodeError identifies the program line that failed to decode.
type DecodeError struct {
	Line string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %q: %v", e.Line, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
