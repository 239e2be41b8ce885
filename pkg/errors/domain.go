package errors

import (
	"fmt"
)

// Code is the stable operator-facing identifier of a reconciliation error.
type Code string

// Input errors (F), item errors (A), filesystem errors (S) and ledger errors (D).
const (
	CodeNoFile           Code = "F001"
	CodeFileMissing      Code = "F002"
	CodeInvalidFormat    Code = "F003"
	CodeReadFailure      Code = "F004"
	CodeUnknownItem      Code = "A001"
	CodeOrphanFamily     Code = "A002"
	CodeDirectoryExists  Code = "S001"
	CodeLockedArtifact   Code = "S002"
	CodeDeleteFailure    Code = "S003"
	CodeRetriesExhausted Code = "S004"
	CodeUpdateFailure    Code = "D001"
	CodeRolledBack       Code = "D002"
)

var codeTitles = map[Code]string{
	CodeNoFile:           "no scan file selected",
	CodeFileMissing:      "scan file does not exist",
	CodeInvalidFormat:    "invalid scan file format",
	CodeReadFailure:      "scan file read failure",
	CodeUnknownItem:      "unknown item",
	CodeOrphanFamily:     "item without family",
	CodeDirectoryExists:  "inventory directory exists",
	CodeLockedArtifact:   "files locked",
	CodeDeleteFailure:    "delete failure",
	CodeRetriesExhausted: "maximum attempts reached",
	CodeUpdateFailure:    "stock update failure",
	CodeRolledBack:       "transaction rolled back",
}

// Title returns the short human readable title of the code.
func (c Code) Title() string {
	if t, ok := codeTitles[c]; ok {
		return t
	}
	return "unknown error"
}

// String returns the code itself.
func (c Code) String() string {
	return string(c)
}

// coder is implemented by every error of the taxonomy.
type coder interface {
	Code() Code
}

// CodeOf extracts the first taxonomy code found in the error tree, depth
// first, the same order errors.As uses.
func CodeOf(err error) (Code, bool) {
	if err == nil {
		return "", false
	}
	if c, ok := err.(coder); ok && c.Code() != "" {
		return c.Code(), true
	}
	switch u := err.(type) {
	case interface{ Unwrap() error }:
		return CodeOf(u.Unwrap())
	case interface{ Unwrap() []error }:
		for _, e := range u.Unwrap() {
			if c, ok := CodeOf(e); ok {
				return c, true
			}
		}
	}
	return "", false
}

// InputError reports a missing or unusable scan file. It fails fast before
// any state is touched.
type InputError struct {
	code Code
	Path string
	Err  error
}

// Error implements the error interface
func (e *InputError) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.code, e.code.Title())
	if e.Path != "" {
		msg += ": " + e.Path
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Code returns the taxonomy code.
func (e *InputError) Code() Code { return e.code }

// Unwrap implements errors.Unwrap
func (e *InputError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewInputError creates a new InputError
func NewInputError(code Code, path string, err error) *InputError {
	return &InputError{code: code, Path: path, Err: err}
}

// UnknownItemError reports a scanned code that is not in the catalog.
type UnknownItemError struct {
	Item    string
	Line    int
	Context string
}

// Error implements the error interface
func (e *UnknownItemError) Error() string {
	return fmt.Sprintf("[%s] item %s does not exist in the catalog (line %d)", CodeUnknownItem, e.Item, e.Line)
}

// Code returns the taxonomy code.
func (e *UnknownItemError) Code() Code { return CodeUnknownItem }

// Is implements errors.Is support
func (e *UnknownItemError) Is(target error) bool {
	return target == ErrUnknownItem
}

// OrphanFamilyError reports a catalog item whose family cannot be resolved.
// During validation it may abort the run; during stock update it is only a
// reporting gap (AtUpdate).
type OrphanFamilyError struct {
	Item     string
	Family   string
	AtUpdate bool
}

// Error implements the error interface
func (e *OrphanFamilyError) Error() string {
	if e.Family != "" {
		return fmt.Sprintf("[%s] item %s references unknown family %s", CodeOrphanFamily, e.Item, e.Family)
	}
	return fmt.Sprintf("[%s] item %s has no valid family", CodeOrphanFamily, e.Item)
}

// Code returns the taxonomy code.
func (e *OrphanFamilyError) Code() Code { return CodeOrphanFamily }

// Is implements errors.Is support
func (e *OrphanFamilyError) Is(target error) bool {
	return target == ErrOrphanFamily
}

// PartialUpdateError reports a ledger update that failed part way and was
// rolled back. Applied counts movements that had been applied before the
// failure and are now undone.
type PartialUpdateError struct {
	Item       string
	Applied    int
	Total      int
	RolledBack bool
	Err        error
}

// Error implements the error interface
func (e *PartialUpdateError) Error() string {
	code := CodeUpdateFailure
	if e.RolledBack {
		code = CodeRolledBack
	}
	msg := fmt.Sprintf("[%s] stock update failed", code)
	if e.Item != "" {
		msg += " for item " + e.Item
	}
	msg += fmt.Sprintf(" after %d/%d movements", e.Applied, e.Total)
	if e.RolledBack {
		msg += ", all changes rolled back"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Code returns the taxonomy code.
func (e *PartialUpdateError) Code() Code {
	if e.RolledBack {
		return CodeRolledBack
	}
	return CodeUpdateFailure
}

// Unwrap implements errors.Unwrap
func (e *PartialUpdateError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *PartialUpdateError) Is(target error) bool {
	return target == ErrPartialUpdate
}

// DirectoryConflictError reports that the canonical directory for a
// reconciliation date already exists.
type DirectoryConflictError struct {
	Path string
}

// Error implements the error interface
func (e *DirectoryConflictError) Error() string {
	return fmt.Sprintf("[%s] directory %s already exists", CodeDirectoryExists, e.Path)
}

// Code returns the taxonomy code.
func (e *DirectoryConflictError) Code() Code { return CodeDirectoryExists }

// Is implements errors.Is support
func (e *DirectoryConflictError) Is(target error) bool {
	return target == ErrDirectoryConflict || target == ErrAlreadyExists
}

// LockedArtifactError reports a failure to retire an existing directory.
// Locked is true when files are held open by another process (transient),
// false for any other deletion failure.
type LockedArtifactError struct {
	Path    string
	Attempt int
	Max     int
	Locked  bool
	Err     error
}

// Error implements the error interface
func (e *LockedArtifactError) Error() string {
	switch {
	case e.Locked && e.Attempt >= e.Max && e.Max > 0:
		return fmt.Sprintf("[%s] could not remove %s after %d attempts: %v", CodeRetriesExhausted, e.Path, e.Max, e.Err)
	case e.Locked:
		return fmt.Sprintf("[%s] files are open in %s (attempt %d/%d): %v", CodeLockedArtifact, e.Path, e.Attempt, e.Max, e.Err)
	default:
		return fmt.Sprintf("[%s] failed to remove %s: %v", CodeDeleteFailure, e.Path, e.Err)
	}
}

// Code returns the taxonomy code.
func (e *LockedArtifactError) Code() Code {
	switch {
	case e.Locked && e.Attempt >= e.Max && e.Max > 0:
		return CodeRetriesExhausted
	case e.Locked:
		return CodeLockedArtifact
	default:
		return CodeDeleteFailure
	}
}

// Unwrap implements errors.Unwrap
func (e *LockedArtifactError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *LockedArtifactError) Is(target error) bool {
	return e.Locked && target == ErrLocked
}

// AbortedError is returned when the operator declines to continue. Committed
// reports whether the ledger had already been committed, in which case the
// stock changes persist without a finalized inventory directory.
type AbortedError struct {
	Stage     string
	Reason    string
	Committed bool
	Err       error
}

// Error implements the error interface
func (e *AbortedError) Error() string {
	msg := "run aborted during " + e.Stage
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Committed {
		msg += " (ledger changes were already committed and are not rolled back)"
	}
	return msg
}

// Code returns the code of the underlying cause when there is one.
func (e *AbortedError) Code() Code {
	if c, ok := CodeOf(e.Err); ok {
		return c
	}
	return ""
}

// Unwrap implements errors.Unwrap
func (e *AbortedError) Unwrap() error { return e.Err }

// Is implements errors.Is support
func (e *AbortedError) Is(target error) bool {
	return target == ErrAborted
}

// NewAbortedError creates a new AbortedError
func NewAbortedError(stage, reason string, committed bool, err error) *AbortedError {
	return &AbortedError{Stage: stage, Reason: reason, Committed: committed, Err: err}
}
