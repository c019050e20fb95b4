package defs

import (
	"errors"
	"fmt"
	"testing"

	"gitlab.com/ccsd.net/internal/static/errs"
)

func TestErrorCodeOf(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want ErrorCode
	}{
		{"nil", nil, ErrCodeNone},
		{"no entry", errs.NoEntry, ErrCodeNoEntry},
		{"wrapped not quorate", fmt.Errorf("set /a: %w", errs.NotQuorate), ErrCodeNotQuorate},
		{"bad descriptor", errs.BadDescriptor, ErrCodeBadDescriptor},
		{"too many sessions", errs.TooManySessions, ErrCodeTooManySessions},
		{"stale", fmt.Errorf("x: %w", errs.StaleVersion), ErrCodeStaleVersion},
		{"update in progress", errs.UpdateInProgress, ErrCodeUpdateInProgress},
		{"comm error", NewCommError(ErrCodeTimeout, ""), ErrCodeTimeout},
		{"unknown", errors.New("boom"), ErrCodeInternal},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			if got := ErrorCodeOf(c.err); got != c.want {
				t.Fatalf("ErrorCodeOf = %d, want %d", got, c.want)
			}
		})
	}
}

func TestErrorCodesAreNegative(t *testing.T) {
	for _, sc := range sentinelCodes {
		if sc.code >= 0 {
			t.Errorf("%v maps to non-negative code %d", sc.err, sc.code)
		}
	}
}

func TestCommErrorUnwrapsToSentinel(t *testing.T) {
	err := fmt.Errorf("get: %w", NewCommError(ErrCodeNoEntry, "get /x"))
	if !errors.Is(err, errs.NoEntry) {
		t.Fatalf("errors.Is(%v, NoEntry) = false", err)
	}

	var ce *CommError
	if !errors.As(err, &ce) || ce.Code != ErrCodeNoEntry {
		t.Fatalf("errors.As failed: %v", err)
	}

	if NewCommError(ErrorCode(-99), "").Unwrap() != nil {
		t.Fatal("unknown code unwrapped to a sentinel")
	}
}

func TestCommErrorMessage(t *testing.T) {
	if got := NewCommError(ErrCodeNotQuorate, "").Error(); got != "CommError(NotQuorate)" {
		t.Errorf("got %q", got)
	}
	if got := NewCommError(ErrCodeNoEntry, "/a").Error(); got != `CommError(NoEntry, "/a")` {
		t.Errorf("got %q", got)
	}
	if got := ErrorCodeText(ErrorCode(-42)); got != "ErrorCode<-42>" {
		t.Errorf("got %q", got)
	}
}
