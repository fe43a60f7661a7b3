package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("resource not found")
	ErrInvalidConfig = errors.New("invalid configuration")
	ErrInvalidInput  = errors.New("invalid input")
	ErrClosed        = errors.New("closed")

	ErrDuplicateName = errors.New("duplicate metanode name")
	ErrUnknownType   = errors.New("unknown metanode type")
	ErrInvalidNode   = errors.New("invalid metanode")

	ErrCycle             = errors.New("cycle detected")
	ErrDanglingReference = errors.New("dangling reference")
	ErrTypeMismatch      = errors.New("type mismatch")

	ErrCodec              = errors.New("codec validation failed")
	ErrOutputTypeMismatch = errors.New("output type mismatch")

	ErrMissingAntecedent = errors.New("missing antecedent")
	ErrNoResolver        = errors.New("process has neither data nor resolver")
	ErrNotResolved       = errors.New("output not resolved")
	ErrResolve           = errors.New("resolution failed")

	ErrExport = errors.New("export failed")
)

// RegistrationError is fatal at startup: the catalog is inconsistent.
type RegistrationError struct {
	Name   string
	Kind   error
	Reason string
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("metanode registration failed for '%s': %s", e.Name, e.Reason)
}

func (e *RegistrationError) Unwrap() error {
	return e.Kind
}

func NewRegistrationError(name string, kind error, format string, args ...interface{}) *RegistrationError {
	return &RegistrationError{
		Name:   name,
		Kind:   kind,
		Reason: fmt.Sprintf(format, args...),
	}
}

// ChainIntegrityError rejects an append before anything is persisted.
type ChainIntegrityError struct {
	ProcessID string
	Slot      string
	Kind      error
	Reason    string
	Cause     error
}

func (e *ChainIntegrityError) Error() string {
	var b strings.Builder
	b.WriteString("chain integrity: ")
	b.WriteString(e.Kind.Error())
	if e.ProcessID != "" {
		b.WriteString(" process=")
		b.WriteString(e.ProcessID)
	}
	if e.Slot != "" {
		b.WriteString(" slot=")
		b.WriteString(e.Slot)
	}
	if e.Reason != "" {
		b.WriteString(": ")
		b.WriteString(e.Reason)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

func (e *ChainIntegrityError) Unwrap() []error {
	return compact(e.Kind, e.Cause)
}

func NewChainIntegrityError(processID, slot string, kind error, format string, args ...interface{}) *ChainIntegrityError {
	return &ChainIntegrityError{
		ProcessID: processID,
		Slot:      slot,
		Kind:      kind,
		Reason:    fmt.Sprintf(format, args...),
	}
}

// CodecError reports a value that failed validation at a decode/encode
// boundary. Path is a JSONPath-like location inside the value.
type CodecError struct {
	ProcessID string
	Slot      string
	Path      string
	Expected  string
	Got       string
	Kind      error
	Cause     error
}

func (e *CodecError) Error() string {
	var b strings.Builder
	if e.Kind == ErrOutputTypeMismatch {
		b.WriteString("output type mismatch")
	} else {
		b.WriteString("codec")
	}
	if e.ProcessID != "" {
		b.WriteString(" process=")
		b.WriteString(e.ProcessID)
	}
	if e.Slot != "" {
		b.WriteString(" slot=")
		b.WriteString(e.Slot)
	}
	path := e.Path
	if path == "" {
		path = "$"
	}
	fmt.Fprintf(&b, " at %s: expected %s", path, e.Expected)
	if e.Got != "" {
		fmt.Fprintf(&b, ", got %s", e.Got)
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, " (%v)", e.Cause)
	}
	return b.String()
}

func (e *CodecError) Unwrap() []error {
	if e.Kind != nil && e.Kind != ErrCodec {
		return compact(ErrCodec, e.Kind, e.Cause)
	}
	return compact(ErrCodec, e.Cause)
}

// At returns a copy annotated with the invocation and slot it surfaced from.
func (e *CodecError) At(processID, slot string) *CodecError {
	clone := *e
	clone.ProcessID = processID
	clone.Slot = slot
	return &clone
}

// AsOutputMismatch returns a copy classified as an output type mismatch.
func (e *CodecError) AsOutputMismatch(processID string) *CodecError {
	clone := *e
	clone.ProcessID = processID
	clone.Slot = ""
	clone.Kind = ErrOutputTypeMismatch
	return &clone
}

func NewCodecError(path, expected, got string) *CodecError {
	return &CodecError{
		Path:     path,
		Expected: expected,
		Got:      got,
		Kind:     ErrCodec,
	}
}

// AntecedentError is raised when an input references an id that is absent
// from the chain being resolved.
type AntecedentError struct {
	ProcessID    string
	Slot         string
	AntecedentID string
}

func (e *AntecedentError) Error() string {
	return fmt.Sprintf("missing antecedent %s for process %s slot %s", e.AntecedentID, e.ProcessID, e.Slot)
}

func (e *AntecedentError) Unwrap() error {
	return ErrMissingAntecedent
}

// ResolutionError wraps a failed resolve. Cause keeps the causal chain: a
// dependent of a failed invocation carries the antecedent's error as Cause.
type ResolutionError struct {
	ProcessID string
	Type      string
	Cause     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s (%s): %v", e.ProcessID, e.Type, e.Cause)
}

func (e *ResolutionError) Unwrap() []error {
	return compact(ErrResolve, e.Cause)
}

func NewResolutionError(processID, processType string, cause error) *ResolutionError {
	return &ResolutionError{
		ProcessID: processID,
		Type:      processType,
		Cause:     cause,
	}
}

// ExportError aborts a provenance export; no partial document is returned.
type ExportError struct {
	Op    string
	Cause error
}

func (e *ExportError) Error() string {
	return fmt.Sprintf("export %s: %v", e.Op, e.Cause)
}

func (e *ExportError) Unwrap() []error {
	return compact(ErrExport, e.Cause)
}

func NewExportError(op string, cause error) *ExportError {
	return &ExportError{Op: op, Cause: cause}
}

type StorageError struct {
	Op  string
	Key string
	Err error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage %s %s: %v", e.Op, e.Key, e.Err)
}

func (e *StorageError) Unwrap() error {
	return e.Err
}

func NewStorageError(op, key string, err error) *StorageError {
	return &StorageError{Op: op, Key: key, Err: err}
}

func NewKeyNotFoundError(key string) *StorageError {
	return NewStorageError("get", key, ErrNotFound)
}

// FailedProcessID walks the causal chain and returns the innermost
// invocation that failed.
func FailedProcessID(err error) string {
	id := ""
	cur := err
	for cur != nil {
		var re *ResolutionError
		if !errors.As(cur, &re) {
			break
		}
		id = re.ProcessID
		cur = re.Cause
	}
	if cur != nil {
		var ce *CodecError
		if errors.As(cur, &ce) && ce.ProcessID != "" {
			return ce.ProcessID
		}
	}
	return id
}

func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

func IsKeyNotFound(err error) bool {
	var se *StorageError
	return errors.As(err, &se) && errors.Is(se.Err, ErrNotFound)
}

func IsInvalidConfig(err error) bool {
	return errors.Is(err, ErrInvalidConfig)
}

func IsRegistrationError(err error) bool {
	var re *RegistrationError
	return errors.As(err, &re)
}

func IsChainIntegrityError(err error) bool {
	var ce *ChainIntegrityError
	return errors.As(err, &ce)
}

func IsCodecError(err error) bool {
	return errors.Is(err, ErrCodec)
}

func IsResolutionError(err error) bool {
	var re *ResolutionError
	return errors.As(err, &re)
}

func IsExportError(err error) bool {
	var ee *ExportError
	return errors.As(err, &ee)
}

func compact(errs ...error) []error {
	out := make([]error, 0, len(errs))
	for _, err := range errs {
		if err != nil {
			out = append(out, err)
		}
	}
	return out
}

// PanicError records a resolve function that panicked.
type PanicError struct {
	ProcessID  string
	Type       string
	Value      interface{}
	StackTrace string
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("resolve function for %s (%s) panicked: %v", e.ProcessID, e.Type, e.Value)
}

func NewPanicError(processID, processType string, value interface{}, stack []byte) *PanicError {
	return &PanicError{
		ProcessID:  processID,
		Type:       processType,
		Value:      value,
		StackTrace: string(stack),
	}
}
