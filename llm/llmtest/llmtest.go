// Package llmtest provides a scripted model for tests.
package llmtest

import (
	"context"
	"errors"
	"sync"

	"github.com/cschleiden/go-approvals/llm"
)

var ErrNoResponse = errors.New("llmtest: no scripted response left")

type Response struct {
	Text string
	Err  error
}

// Model answers requests from a queue of scripted responses, falling back to a handler once the
// queue is drained. It records every request.
type Model struct {
	mu        sync.Mutex
	responses []Response
	handler   func(req *llm.Request) (string, error)
	calls     []llm.Request
}

var _ llm.Model = (*Model)(nil)

func NewScripted(responses ...Response) *Model {
	return &Model{responses: responses}
}

func New(handler func(req *llm.Request) (string, error)) *Model {
	return &Model{handler: handler}
}

func (m *Model) Generate(ctx context.Context, req *llm.Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.calls = append(m.calls, *req)

	if err := ctx.Err(); err != nil {
		return "", err
	}

	if len(m.responses) > 0 {
		r := m.responses[0]
		m.responses = m.responses[1:]

		return r.Text, r.Err
	}

	if m.handler != nil {
		return m.handler(req)
	}

	return "", ErrNoResponse
}

func (m *Model) Calls() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()

	calls := make([]llm.Request, len(m.calls))
	copy(calls, m.calls)

	return calls
}
