package errorsx

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestReasonClassifiesWrappedErrors(t *testing.T) {
	cases := []struct {
		name  string
		err   error
		want  ReasonCode
		fatal bool
	}{
		{name: "nil", err: nil, want: "", fatal: false},
		{name: "tool", err: fmt.Errorf("call: %w", &ToolExecutionError{Tool: "send_email", Err: errors.New("boom")}), want: ReasonToolExecution},
		{name: "malformed", err: &MalformedToolCallError{Tool: "nope", Reason: "unknown tool"}, want: ReasonMalformedCall},
		{name: "model", err: &ModelUnavailableError{Err: context.DeadlineExceeded}, want: ReasonModelUnavail, fatal: true},
		{name: "loop", err: &UnboundedToolLoopError{Limit: 3}, want: ReasonUnboundedLoop, fatal: true},
		{name: "plain", err: errors.New("other"), want: ReasonUnknown, fatal: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := Reason(tc.err); got != tc.want {
				t.Fatalf("Reason = %q, want %q", got, tc.want)
			}
			if got := IsFatal(tc.err); got != tc.fatal {
				t.Fatalf("IsFatal = %v, want %v", got, tc.fatal)
			}
		})
	}
}

func TestModelUnavailableUnwraps(t *testing.T) {
	err := &ModelUnavailableError{Err: context.DeadlineExceeded}
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatal("expected errors.Is to see the wrapped deadline error")
	}
	if err.Error() != "model unavailable: context deadline exceeded" {
		t.Fatalf("unexpected message: %s", err.Error())
	}
	var nilErr *ModelUnavailableError
	if nilErr.Error() != "<nil>" {
		t.Fatal("nil error should print <nil>")
	}
}
