package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestMetadataForKnownCodes(t *testing.T) {
	meta := MetadataFor(CodeStateConflict)
	if meta.HTTPStatus != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 for state conflict, got %d", meta.HTTPStatus)
	}
	if !meta.DetailsAllowed {
		t.Fatal("state conflict should allow details")
	}
}

func TestMetadataForUnknownCodeFallsBack(t *testing.T) {
	meta := MetadataFor(Code("NOPE"))
	if meta.HTTPStatus != http.StatusInternalServerError {
		t.Fatalf("expected internal fallback, got %d", meta.HTTPStatus)
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stdErrors.New("db down")
	err := Wrap(CodeDependency, cause, "payment provider unreachable")

	if !stdErrors.Is(err, cause) {
		t.Fatal("wrapped error should match its cause")
	}
	if err.Code() != CodeDependency {
		t.Fatalf("unexpected code %s", err.Code())
	}
}

func TestAsThroughChain(t *testing.T) {
	inner := New(CodeNotFound, "order missing")
	wrapped := fmt.Errorf("loading order: %w", inner)

	typed := As(wrapped)
	if typed == nil {
		t.Fatal("expected typed error through fmt wrapping")
	}
	if typed.Code() != CodeNotFound {
		t.Fatalf("unexpected code %s", typed.Code())
	}
}

func TestStateConflictDetails(t *testing.T) {
	err := StateConflict("order", "delivered", "cancel")
	details, ok := err.Details().(map[string]string)
	if !ok {
		t.Fatalf("expected map details, got %T", err.Details())
	}
	if details["current_status"] != "delivered" {
		t.Fatalf("unexpected details %v", details)
	}
}

func TestDumpCollectsChain(t *testing.T) {
	cause := stdErrors.New("root")
	err := Wrap(CodeInternal, cause, "wrapped")

	d := Dump(err)
	if d.Code != CodeInternal {
		t.Fatalf("unexpected code %s", d.Code)
	}
	if len(d.Chain) < 2 {
		t.Fatalf("expected full chain, got %v", d.Chain)
	}
}
