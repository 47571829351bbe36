package errors

import (
	stderrors "errors"
	"fmt"
	"testing"
)

func TestKindMatchesWrappedSentinel(t *testing.T) {
	specific := fmt.Errorf("%w: program inactive", ErrInvalidState)
	wrapped := fmt.Errorf("issue voucher: %w", specific)
	if got := Kind(wrapped); got != ErrInvalidState {
		t.Fatalf("expected invalid state, got %v", got)
	}
	if !stderrors.Is(wrapped, specific) {
		t.Fatalf("expected specific error to remain matchable")
	}
	if Kind(stderrors.New("io")) != nil {
		t.Fatalf("foreign errors should not map to a kind")
	}
}
