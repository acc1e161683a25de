package oracle

import "errors"

// TransportError means the oracle could not be reached or answered with a
// non-success status.
type TransportError struct {
	err error
}

func (e *TransportError) Error() string {
	return "oracle transport: " + e.err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.err
}

// NewTransportError wraps err as a transport failure.
func NewTransportError(err error) error {
	return &TransportError{err: err}
}

// SchemaError means the oracle answered but the content could not be parsed
// into the expected shape.
type SchemaError struct {
	err error
}

func (e *SchemaError) Error() string {
	return "oracle schema: " + e.err.Error()
}

func (e *SchemaError) Unwrap() error {
	return e.err
}

// NewSchemaError wraps err as a schema failure.
func NewSchemaError(err error) error {
	return &SchemaError{err: err}
}

// IsTransport reports whether err is a transport failure.
func IsTransport(err error) bool {
	var te *TransportError
	return errors.As(err, &te)
}

// IsSchema reports whether err is a schema failure.
func IsSchema(err error) bool {
	var se *SchemaError
	return errors.As(err, &se)
}
