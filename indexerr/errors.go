// Package indexerr defines the error taxonomy of the index engine.
//
// Errors produced by the engine wrap one of the sentinels below with
// fmt.Errorf("...: %w", ...) so callers can classify them with errors.Is.
// Errors coming from the storage engine are propagated wrapped but otherwise
// unmodified.
package indexerr

import "errors"

var (
	// ErrValidation means an index definition cannot be built by this engine
	// (multi-column, full-text, unsupported column type, unknown kind). Fatal
	// at index build time.
	ErrValidation = errors.New("invalid index definition")

	// ErrUnsupportedCombination means the index kind cannot be applied to the
	// reserved pseudo-property named by the definition.
	ErrUnsupportedCombination = errors.New("unsupported index kind for property")

	// ErrConversion means an operand or a property value cannot be converted
	// to the key type of the index. Aborts the current query evaluation.
	ErrConversion = errors.New("value conversion failed")

	// ErrUnrecognizedOperand means a static operand is neither a literal nor
	// a bind variable.
	ErrUnrecognizedOperand = errors.New("unrecognized static operand")
)
