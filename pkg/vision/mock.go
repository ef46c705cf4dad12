package vision

import (
	"context"
	"sync"
	"time"
)

// Mock implements Analyzer for testing.
// All methods can be customized via function fields.
type Mock struct {
	// AnalyzeFunc is called when Analyze is invoked.
	// If nil, returns a fixed count of 3.
	AnalyzeFunc func(ctx context.Context, data []byte, mode Mode) (Analysis, error)

	// ReadyFunc is called when Ready is invoked.
	// If nil, returns true.
	ReadyFunc func() bool

	// CloseFunc is called when Close is invoked.
	// If nil, returns nil.
	CloseFunc func() error

	// Tracking
	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation for verification.
type MockCall struct {
	Method    string
	Mode      Mode
	DataBytes int
	Time      time.Time
}

// NewMock creates a new mock analyzer with sensible defaults.
func NewMock() *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
			return Analysis{
				Count:  3,
				Mode:   mode,
				Engine: "mock",
			}, nil
		},
	}
}

// Analyze calls AnalyzeFunc and records the call.
func (m *Mock) Analyze(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
	m.recordCall("Analyze", mode, len(data))
	if m.AnalyzeFunc != nil {
		return m.AnalyzeFunc(ctx, data, mode)
	}
	return Analysis{}, ErrUnavailable
}

// Ready calls ReadyFunc and records the call.
func (m *Mock) Ready() bool {
	m.recordCall("Ready", "", 0)
	if m.ReadyFunc != nil {
		return m.ReadyFunc()
	}
	return true
}

// Engine returns "mock".
func (m *Mock) Engine() string {
	return "mock"
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.recordCall("Close", "", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

// recordCall adds a call to the tracking list.
func (m *Mock) recordCall(method string, mode Mode, dataBytes int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{
		Method:    method,
		Mode:      mode,
		DataBytes: dataBytes,
		Time:      time.Now(),
	})
}

// Calls returns all recorded method calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]MockCall, len(m.calls))
	copy(result, m.calls)
	return result
}

// CallCount returns the number of times a method was called.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	count := 0
	for _, c := range m.calls {
		if c.Method == method {
			count++
		}
	}
	return count
}

// LastCall returns the most recent call, or nil if none.
func (m *Mock) LastCall() *MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.calls) == 0 {
		return nil
	}
	call := m.calls[len(m.calls)-1]
	return &call
}

// Reset clears all recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// MockWithCount returns a mock whose analyses always report count.
func MockWithCount(count int) *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
			return Analysis{
				Count:  count,
				Mode:   mode,
				Engine: "mock",
			}, nil
		},
	}
}

// MockWithError returns a mock that always fails analysis.
func MockWithError(err error) *Mock {
	return &Mock{
		AnalyzeFunc: func(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
			return Analysis{}, err
		},
	}
}

// MockNotReady returns a mock that reports unavailability.
func MockNotReady() *Mock {
	return &Mock{
		ReadyFunc: func() bool { return false },
		AnalyzeFunc: func(ctx context.Context, data []byte, mode Mode) (Analysis, error) {
			return Analysis{}, ErrUnavailable
		},
	}
}

// Verify Mock implements Analyzer at compile time.
var _ Analyzer = (*Mock)(nil)
