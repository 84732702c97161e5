package zmachine

import (
	"errors"
	"fmt"
)

// ---------------------------------------------------------------------------
// Fault Types
// ---------------------------------------------------------------------------

// Faults are fatal to the running game: the machine halts and the host is
// expected to print the diagnostic. Conditions the standard recovers locally
// (missing property, call to address 0, dictionary miss) never raise these.
var (
	ErrUnsupportedVersion = errors.New("unsupported story version")
	ErrUnsupportedOpcode  = errors.New("unsupported opcode")
	ErrOutOfBounds        = errors.New("memory access out of bounds")
	ErrReadOnly           = errors.New("write into read-only memory")
	ErrNullObject         = errors.New("operation on the null object")
	ErrNoProp             = errors.New("object has no such property")
	ErrPropSize           = errors.New("property size not writable")
	ErrDivZero            = errors.New("division by zero")
	ErrStackUnderflow     = errors.New("evaluation stack underflow")
	ErrStackOverflow      = errors.New("call stack overflow")
	ErrCorruptStory       = errors.New("corrupt story file")
)

// Fault wraps a fatal error with the program counter of the instruction that
// raised it.
type Fault struct {
	PC  int
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("fault at pc 0x%05x: %v", f.PC, f.Err)
}

func (f *Fault) Unwrap() error {
	return f.Err
}

// fail signals a fault from inside opcode execution. The run loop recovers it
// and attaches the current PC. Mirrors how the interpreter signals exceptions
// elsewhere in this codebase: panic for the exceptional path, error values at
// the API boundary.
func fail(err error) {
	panic(err)
}

func failf(sentinel error, format string, args ...interface{}) {
	panic(fmt.Errorf(format+": %w", append(args, sentinel)...))
}
