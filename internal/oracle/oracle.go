// Package oracle is the narrow boundary between the synthesis pipeline and
// the external text-generation service. Every request is an ordered list of
// role/content messages plus a format hint; every failure is typed as either
// a transport or a schema error.
package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
)

// Role is the author of a message.
type Role string

const (
	RoleSystem Role = "system"
	RoleUser   Role = "user"
)

// Format is the response format hint.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json_object"
)

// Message is one role/content pair.
type Message struct {
	Role    Role
	Content string
}

// Request is a single oracle call. Stage and Unit only label the call for
// logging and the call history.
type Request struct {
	Model    string
	Messages []Message
	Format   Format
	Stage    string
	Unit     string
}

// Response holds the generated text and, in JSON mode, the extracted JSON value.
type Response struct {
	Text      string
	JSON      json.RawMessage
	Truncated bool // stopped by the token cap
}

// Oracle generates text or structured values from an ordered message list.
type Oracle interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Validator is implemented by response shapes that check themselves after decoding.
type Validator interface {
	Validate() error
}

// Ask issues exactly one system message followed by one user message.
func Ask(ctx context.Context, o Oracle, stage, unit, system, user string, format Format) (*Response, error) {
	return o.Generate(ctx, Request{
		Messages: []Message{
			{Role: RoleSystem, Content: system},
			{Role: RoleUser, Content: user},
		},
		Format: format,
		Stage:  stage,
		Unit:   unit,
	})
}

// Decode unmarshals the JSON value of resp into T and validates it when T
// implements Validator. Every failure is returned as a *SchemaError.
func Decode[T any](resp *Response) (T, error) {
	var out T
	raw := resp.JSON
	if len(raw) == 0 {
		extracted, err := ParseJSON(resp.Text)
		if err != nil {
			return out, err
		}
		raw = extracted
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	if err := dec.Decode(&out); err != nil {
		return out, NewSchemaError(fmt.Errorf("decode %T: %w", out, err))
	}
	if v, ok := any(&out).(Validator); ok {
		if err := v.Validate(); err != nil {
			return out, NewSchemaError(err)
		}
	}
	return out, nil
}

// AskJSON is Ask in JSON mode followed by Decode.
func AskJSON[T any](ctx context.Context, o Oracle, stage, unit, system, user string) (T, error) {
	resp, err := Ask(ctx, o, stage, unit, system, user, FormatJSON)
	if err != nil {
		var zero T
		return zero, err
	}
	return Decode[T](resp)
}
