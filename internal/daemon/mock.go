package daemon

import (
	"context"
	"sync"
	"time"

	"github.com/hearth-panel/hearth-ctl/internal/errors"
	"github.com/hearth-panel/hearth-ctl/internal/model"
)

// MockClient is a mock implementation of Client for testing
type MockClient struct {
	mu sync.RWMutex

	// Servers tracks the UUIDs the mock daemon currently knows
	Servers map[string]bool

	// Errors allows injecting errors for specific operations ("Create", "Delete")
	Errors map[string]error

	// Delays makes an operation wait before answering, honoring the context
	Delays map[string]time.Duration

	// CallLog records all method calls for verification
	CallLog []MockCall
}

// MockCall represents a recorded method call
type MockCall struct {
	Method string
	Node   string
	Server string
	Start  bool
}

// NewMockClient creates a new mock daemon client
func NewMockClient() *MockClient {
	return &MockClient{
		Servers: make(map[string]bool),
		Errors:  make(map[string]error),
		Delays:  make(map[string]time.Duration),
		CallLog: make([]MockCall, 0),
	}
}

// SetError sets an error to be returned for a specific operation
func (m *MockClient) SetError(operation string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Errors[operation] = err
}

// SetDelay makes an operation wait for d before answering
func (m *MockClient) SetDelay(operation string, d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Delays[operation] = d
}

// GetCallsFor returns all calls for a specific method
func (m *MockClient) GetCallsFor(method string) []MockCall {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var calls []MockCall
	for _, call := range m.CallLog {
		if call.Method == method {
			calls = append(calls, call)
		}
	}
	return calls
}

// Has reports whether the mock daemon knows the server
func (m *MockClient) Has(uuid string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.Servers[uuid]
}

// Reset clears all state
func (m *MockClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Servers = make(map[string]bool)
	m.Errors = make(map[string]error)
	m.Delays = make(map[string]time.Duration)
	m.CallLog = make([]MockCall, 0)
}

// begin records the call and returns the configured delay and error.
func (m *MockClient) begin(call MockCall) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallLog = append(m.CallLog, call)
	return m.Delays[call.Method], m.Errors[call.Method]
}

func (m *MockClient) wait(ctx context.Context, node *model.Node, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return &errors.DaemonConnectionError{Node: node.Name, Cause: ctx.Err()}
	}
}

// Create records the call and registers the server
func (m *MockClient) Create(ctx context.Context, server *model.Server, node *model.Node, startOnCompletion bool) error {
	delay, err := m.begin(MockCall{Method: "Create", Node: node.Name, Server: server.UUID, Start: startOnCompletion})
	if err := m.wait(ctx, node, delay); err != nil {
		return err
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.Servers[server.UUID] = true
	return nil
}

// Delete records the call and forgets the server
func (m *MockClient) Delete(ctx context.Context, server *model.Server, node *model.Node) error {
	delay, err := m.begin(MockCall{Method: "Delete", Node: node.Name, Server: server.UUID})
	if err := m.wait(ctx, node, delay); err != nil {
		return err
	}
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.Servers, server.UUID)
	return nil
}

var _ Client = (*MockClient)(nil)
var _ Client = (*HTTPClient)(nil)
