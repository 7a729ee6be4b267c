package validate

import (
	"errors"
	"testing"

	"trusthub.org/internal/apperr"
)

type sample struct {
	Title string  `json:"title" validate:"required"`
	Email string  `json:"email" validate:"omitempty,email"`
	Note  *string `json:"note" validate:"required"`
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	note := "x"
	err := Struct(sample{Note: &note})
	if !errors.Is(err, apperr.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if err.Error() != "missing required field: title" {
		t.Fatalf("unexpected message: %q", err.Error())
	}

	err = Struct(sample{Title: "t"})
	if err == nil || err.Error() != "missing required field: note" {
		t.Fatalf("unexpected result for nil pointer: %v", err)
	}

	err = Struct(sample{Title: "t", Note: &note, Email: "nope"})
	if err == nil || err.Error() != "email must be a valid email address" {
		t.Fatalf("unexpected result for email: %v", err)
	}

	if err := Struct(sample{Title: "t", Note: &note, Email: "a@x.com"}); err != nil {
		t.Fatalf("expected valid, got %v", err)
	}
}
