package apperr

import (
	"errors"
	"fmt"
	"testing"
)

func TestKindsSurviveWrapping(t *testing.T) {
	cases := map[string]struct {
		err  error
		kind error
	}{
		"validation":      {Validation("missing required field: %s", "title"), ErrValidation},
		"unauthenticated": {Unauthenticated("invalid token"), ErrUnauthenticated},
		"forbidden":       {Forbidden("admin access required"), ErrForbidden},
		"not found":       {NotFound("job not found"), ErrNotFound},
		"conflict":        {Conflict("escrow already exists for this job"), ErrConflict},
		"invalid state":   {InvalidState("job already submitted"), ErrInvalidState},
	}
	for name, tc := range cases {
		wrapped := fmt.Errorf("jobs: submit: %w", tc.err)
		if !errors.Is(wrapped, tc.kind) {
			t.Fatalf("%s: expected kind %v", name, tc.kind)
		}
		msg, ok := Message(wrapped)
		if !ok || msg != tc.err.Error() {
			t.Fatalf("%s: message %q ok=%v", name, msg, ok)
		}
	}
}

func TestMessageRejectsForeignErrors(t *testing.T) {
	if _, ok := Message(errors.New("pq: connection reset")); ok {
		t.Fatal("foreign error must not expose a message")
	}
}
