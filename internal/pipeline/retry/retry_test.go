package retry

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type statusError struct{ status int }

func (e *statusError) Error() string   { return fmt.Sprintf("http status %d", e.status) }
func (e *statusError) HTTPStatus() int { return e.status }

type protocolError struct{ code int }

func (e *protocolError) Error() string     { return fmt.Sprintf("rpc error %d", e.code) }
func (e *protocolError) ProtocolCode() int { return e.code }

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify_ExplicitMarkers(t *testing.T) {
	transient := Classify(Transient(errors.New("upstream flaked")))
	assert.Equal(t, ClassTransient, transient.Class)
	assert.Equal(t, "explicit_transient", transient.Reason)

	terminal := Classify(Terminal(errors.New("invalid params")))
	assert.Equal(t, ClassTerminal, terminal.Class)
	assert.Equal(t, "explicit_terminal", terminal.Reason)
}

func TestClassify_TypedErrors(t *testing.T) {
	testCases := []struct {
		name          string
		err           error
		expectedClass Class
	}{
		{name: "http 429 transient", err: &statusError{status: 429}, expectedClass: ClassTransient},
		{name: "http 503 transient", err: &statusError{status: 503}, expectedClass: ClassTransient},
		{name: "http 408 transient", err: &statusError{status: 408}, expectedClass: ClassTransient},
		{name: "http 400 terminal", err: &statusError{status: 400}, expectedClass: ClassTerminal},
		{name: "http 401 terminal", err: &statusError{status: 401}, expectedClass: ClassTerminal},
		{name: "wrapped status still classified", err: fmt.Errorf("call: %w", &statusError{status: 502}), expectedClass: ClassTransient},
		{name: "jsonrpc internal transient", err: &protocolError{code: -32603}, expectedClass: ClassTransient},
		{name: "jsonrpc server range transient", err: &protocolError{code: -32010}, expectedClass: ClassTransient},
		{name: "jsonrpc invalid params terminal", err: &protocolError{code: -32602}, expectedClass: ClassTerminal},
		{name: "net timeout transient", err: timeoutError{}, expectedClass: ClassTransient},
		{name: "context canceled terminal", err: context.Canceled, expectedClass: ClassTerminal},
		{name: "context deadline transient", err: context.DeadlineExceeded, expectedClass: ClassTransient},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			decision := Classify(tc.err)
			assert.Equal(t, tc.expectedClass, decision.Class)
		})
	}
}

func TestClassify_MessageFallback(t *testing.T) {
	assert.Equal(t, ClassTransient, Classify(errors.New("upstream rate limit hit")).Class)
	assert.Equal(t, ClassTerminal, Classify(errors.New("execution reverted")).Class)
	assert.Equal(t, ClassTerminal, Classify(errors.New("something novel")).Class)
}

func TestBackoff_Bounds(t *testing.T) {
	base := 100 * time.Millisecond
	max := 2 * time.Second

	// rnd=1-ε gives the window ceiling; every delay must stay within
	// [0, min(base*2^(attempt-1), max)].
	for attempt := 1; attempt <= 8; attempt++ {
		ceiling := Backoff(attempt, base, max, func() float64 { return 0.999999 })
		expected := base << (attempt - 1)
		if expected > max {
			expected = max
		}
		assert.LessOrEqual(t, ceiling, expected, "attempt %d", attempt)
		assert.GreaterOrEqual(t, ceiling, time.Duration(0))
	}

	assert.Equal(t, time.Duration(0), Backoff(3, base, max, func() float64 { return 0 }))
}

func TestBackoff_DegenerateInputs(t *testing.T) {
	assert.Equal(t, time.Duration(0), Backoff(1, 0, time.Second, func() float64 { return 0.5 }))

	// max below base collapses to base.
	d := Backoff(5, time.Second, time.Millisecond, func() float64 { return 0.999999 })
	assert.LessOrEqual(t, d, time.Second)
}
