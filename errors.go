package capn

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMalformedPointer is returned for pointers with a reserved kind,
	// unexpected kinds, invalid far pointer chains and pointer graphs that
	// exceed the nesting limit.
	ErrMalformedPointer = errors.New("malformed pointer")

	// ErrOutOfBounds is returned when an offset resolves outside its segment
	// or an index is outside a list.
	ErrOutOfBounds = errors.New("out of bounds")

	// ErrTruncated is returned when a declared region extends past the
	// physical buffer.
	ErrTruncated = errors.New("truncated buffer")

	// ErrUnknownVariant is returned by UnionValue.Active when the discriminant
	// does not name any known variant.
	ErrUnknownVariant = errors.New("unknown union variant")

	// ErrInactiveVariant is returned when reading a union variant that is not
	// selected by the discriminant.
	ErrInactiveVariant = errors.New("inactive union variant")

	ErrInvalidText   = errors.New("invalid text encoding")
	ErrValueMismatch = errors.New("value does not match field type")
)

type DataError struct {
	Data []byte
	Off  int
	Err  error
	Msg  string
}

func dataErrf(data []byte, off int, err error, format string, args ...any) error {
	return &DataError{data, off, err, fmt.Sprintf(format, args...)}
}

func (e *DataError) Unwrap() error {
	return e.Err
}

func (e *DataError) Error() string {
	const prefixLen = 64
	const suffixLen = 32
	n := len(e.Data)
	var buf strings.Builder
	buf.WriteString(e.Msg)
	if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	fmt.Fprintf(&buf, " at +%d: (%d) ", e.Off, n)
	if n <= prefixLen+suffixLen {
		fmt.Fprintf(&buf, "%x", e.Data)
	} else {
		fmt.Fprintf(&buf, "%x...%x", e.Data[:prefixLen], e.Data[n-suffixLen:])
	}
	return buf.String()
}

// FieldError reports a problem with a particular field, typically a Go value
// that cannot be stored into it.
type FieldError struct {
	Type  *StructType
	Field *Field
	Msg   string
	Err   error
}

func fieldErrf(st *StructType, f *Field, err error, format string, args ...any) error {
	return &FieldError{st, f, fmt.Sprintf(format, args...), err}
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

func (e *FieldError) Error() string {
	var buf strings.Builder
	if e.Type != nil {
		buf.WriteString(e.Type.Name())
	}
	if e.Field != nil {
		if buf.Len() > 0 {
			buf.WriteByte('.')
		}
		buf.WriteString(e.Field.Name())
	}
	if e.Msg != "" {
		buf.WriteString(": ")
		buf.WriteString(e.Msg)
		if e.Err != nil {
			buf.WriteString(": ")
			buf.WriteString(e.Err.Error())
		}
	} else if e.Err != nil {
		buf.WriteString(": ")
		buf.WriteString(e.Err.Error())
	}
	return buf.String()
}
