// Package oracletest provides a deterministic oracle for pipeline tests.
package oracletest

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/julianshen/conceptmap/internal/oracle"
)

// Reply is a scripted answer. Err, when set, is returned instead of Text.
type Reply struct {
	Text string
	Err  error
}

// Rule answers every request whose stage equals Stage (when set) and whose
// user message contains Match (when set).
type Rule struct {
	Stage string
	Match string
	Reply Reply
}

// Stub is a scripted oracle. Rules are consulted in order; when none
// matches, the next entry of Sequence is used; when the sequence is
// exhausted, Fallback is returned.
//
// Usage:
//
//	stub := &oracletest.Stub{
//	    Rules: []oracletest.Rule{
//	        {Stage: "enrich", Match: `"id": "order"`, Reply: oracletest.Reply{Text: `{"aliases":["purchase"]}`}},
//	        {Stage: "views", Reply: oracletest.Reply{Err: oracletest.ErrTransport}},
//	    },
//	}
type Stub struct {
	Rules    []Rule
	Sequence []Reply
	Fallback *Reply

	mu    sync.Mutex
	calls []oracle.Request
	next  int
}

// ErrTransport is a ready-made transport failure.
var ErrTransport = oracle.NewTransportError(errors.New("connection refused"))

// Text returns a reply with the given body.
func Text(s string) Reply { return Reply{Text: s} }

// Fail returns a reply carrying err.
func Fail(err error) Reply { return Reply{Err: err} }

// Generate implements oracle.Oracle.
func (s *Stub) Generate(_ context.Context, req oracle.Request) (*oracle.Response, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls = append(s.calls, req)
	reply := s.pick(req)
	if reply.Err != nil {
		return nil, reply.Err
	}

	resp := &oracle.Response{Text: reply.Text}
	if req.Format == oracle.FormatJSON {
		raw, err := oracle.ParseJSON(reply.Text)
		if err != nil {
			return nil, err
		}
		resp.JSON = raw
	}
	return resp, nil
}

func (s *Stub) pick(req oracle.Request) Reply {
	user := UserContent(req)
	for _, r := range s.Rules {
		if r.Stage != "" && r.Stage != req.Stage {
			continue
		}
		if r.Match != "" && !strings.Contains(user, r.Match) {
			continue
		}
		return r.Reply
	}
	if s.next < len(s.Sequence) {
		r := s.Sequence[s.next]
		s.next++
		return r
	}
	if s.Fallback != nil {
		return *s.Fallback
	}
	return Reply{Err: oracle.NewTransportError(errors.New("oracletest: no scripted reply"))}
}

// Calls returns a copy of every request received so far.
func (s *Stub) Calls() []oracle.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]oracle.Request, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallsFor returns the requests received for one stage.
func (s *Stub) CallsFor(stage string) []oracle.Request {
	var out []oracle.Request
	for _, c := range s.Calls() {
		if c.Stage == stage {
			out = append(out, c)
		}
	}
	return out
}

// UserContent returns the concatenated user messages of req.
func UserContent(req oracle.Request) string {
	var parts []string
	for _, m := range req.Messages {
		if m.Role == oracle.RoleUser {
			parts = append(parts, m.Content)
		}
	}
	return strings.Join(parts, "\n")
}
