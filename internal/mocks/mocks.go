// File: internal/mocks/mocks.go
package mocks

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/xkilldash9x/pathwright/api/schemas"
)

// -- LLM Client Mock --

// MockLLMClient mocks the schemas.LLMClient interface.
type MockLLMClient struct {
	mock.Mock
}

// Generate provides a mock function for LLM calls.
func (m *MockLLMClient) Generate(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	default:
	}
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *MockLLMClient) Close() error {
	return m.Called().Error(0)
}

// -- Oracle Mocks --

// MockPlanner mocks the schemas.Planner interface.
type MockPlanner struct {
	mock.Mock
}

func (m *MockPlanner) Plan(ctx context.Context, task string) (schemas.Plan, error) {
	args := m.Called(ctx, task)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Plan), args.Error(1)
}

// MockSuggester mocks the schemas.Suggester interface.
type MockSuggester struct {
	mock.Mock
}

func (m *MockSuggester) Suggest(ctx context.Context, intent, task, pageContent string) (string, error) {
	args := m.Called(ctx, intent, task, pageContent)
	return args.String(0), args.Error(1)
}

// MockDiscoverer mocks the schemas.Discoverer interface.
type MockDiscoverer struct {
	mock.Mock
}

func (m *MockDiscoverer) Discover(ctx context.Context, pageContent string) (schemas.Findings, error) {
	args := m.Called(ctx, pageContent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Findings), args.Error(1)
}

// MockReconciler mocks the schemas.Reconciler interface.
type MockReconciler struct {
	mock.Mock
}

func (m *MockReconciler) Reconcile(ctx context.Context, existing []string, findings schemas.Findings) (schemas.Findings, error) {
	args := m.Called(ctx, existing, findings)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Findings), args.Error(1)
}

// MockLearner mocks the schemas.Learner interface.
type MockLearner struct {
	mock.Mock
}

func (m *MockLearner) LearnFromPage(ctx context.Context, act schemas.Actuator) (int, error) {
	args := m.Called(ctx, act)
	return args.Int(0), args.Error(1)
}

// -- Actuator Mocks --

// MockActuator mocks the schemas.Actuator interface.
type MockActuator struct {
	mock.Mock
}

func (m *MockActuator) Invoke(ctx context.Context, call schemas.ToolCall) (schemas.ToolResult, error) {
	args := m.Called(ctx, call)
	return args.Get(0).(schemas.ToolResult), args.Error(1)
}

func (m *MockActuator) IsAlive(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockActuator) CapturePage(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockActuator) Locate(ctx context.Context, strategy string, wait time.Duration) (*schemas.ElementHandle, error) {
	args := m.Called(ctx, strategy, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ElementHandle), args.Error(1)
}

func (m *MockActuator) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

// MockActuatorFactory mocks the schemas.ActuatorFactory interface.
type MockActuatorFactory struct {
	mock.Mock
}

func (m *MockActuatorFactory) NewActuator(ctx context.Context) (schemas.Actuator, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(schemas.Actuator), args.Error(1)
}

// -- Observer --

// RecordingObserver collects every emitted line. It is safe for concurrent use.
type RecordingObserver struct {
	mu       sync.Mutex
	messages []string
}

func (o *RecordingObserver) Emit(message string) {
	o.mu.Lock()
	o.messages = append(o.messages, message)
	o.mu.Unlock()
}

// Messages returns a copy of everything emitted so far.
func (o *RecordingObserver) Messages() []string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]string(nil), o.messages...)
}

// -- Page Mock --

// MockPage mocks the schemas.Page interface.
type MockPage struct {
	mock.Mock
}

func (m *MockPage) Navigate(ctx context.Context, url string) error {
	return m.Called(ctx, url).Error(0)
}

func (m *MockPage) CurrentURL(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Locate(ctx context.Context, strategy string, wait time.Duration) (*schemas.ElementHandle, error) {
	args := m.Called(ctx, strategy, wait)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*schemas.ElementHandle), args.Error(1)
}

func (m *MockPage) ScrollIntoView(ctx context.Context, el *schemas.ElementHandle) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockPage) Click(ctx context.Context, el *schemas.ElementHandle) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockPage) Type(ctx context.Context, el *schemas.ElementHandle, text string) error {
	return m.Called(ctx, el, text).Error(0)
}

func (m *MockPage) PressEnter(ctx context.Context, el *schemas.ElementHandle) error {
	return m.Called(ctx, el).Error(0)
}

func (m *MockPage) Content(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockPage) Screenshot(ctx context.Context) ([]byte, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockPage) Alive(ctx context.Context) bool {
	return m.Called(ctx).Bool(0)
}

func (m *MockPage) Close(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}
