package session

import (
	"errors"
	"math"
	"reflect"
	"testing"
	"time"

	"gitlab.com/ccsd.net/internal/adapter/logging"
	"gitlab.com/ccsd.net/internal/config"
	"gitlab.com/ccsd.net/internal/domain"
	"gitlab.com/ccsd.net/internal/static/errs"
)

func newTestService(max int, idle time.Duration) *SessionService {
	return NewSessionService(&config.SessionConfig{MaxSessions: max, IdleTimeout: idle}, logging.NewNopLogger())
}

func TestOpenAllocatesIncreasingDescriptors(t *testing.T) {
	svc := newTestService(8, 0)

	var descs []int32
	for i := 0; i < 3; i++ {
		sess, err := svc.Open(false)
		if err != nil {
			t.Fatal(err)
		}
		if sess.CWP != "/" {
			t.Fatalf("new session cwp = %q", sess.CWP)
		}
		descs = append(descs, sess.Desc)
	}
	if !reflect.DeepEqual(descs, []int32{1, 2, 3}) {
		t.Fatalf("descs = %v", descs)
	}

	// closed descriptors are not reused right away
	if err := svc.Close(2); err != nil {
		t.Fatal(err)
	}
	sess, _ := svc.Open(true)
	if sess.Desc != 4 || !sess.Forced {
		t.Fatalf("reopen = %+v", sess)
	}
}

func TestOpenWrapsAroundSkippingOpen(t *testing.T) {
	svc := newTestService(8, 0)
	first, _ := svc.Open(false)

	svc.lastDesc = math.MaxInt32 - 1
	a, _ := svc.Open(false)
	b, _ := svc.Open(false)
	if a.Desc != math.MaxInt32 {
		t.Fatalf("a = %d", a.Desc)
	}
	if b.Desc == first.Desc || b.Desc != 2 {
		t.Fatalf("after wrap got %d, want 2", b.Desc)
	}
}

func TestOpenLimit(t *testing.T) {
	svc := newTestService(2, 0)
	svc.Open(false)
	svc.Open(false)

	if _, err := svc.Open(false); !errors.Is(err, errs.TooManySessions) {
		t.Fatalf("err = %v, want TooManySessions", err)
	}
	if svc.Count() != 2 {
		t.Fatalf("Count = %d", svc.Count())
	}
}

func TestDefaultLimit(t *testing.T) {
	svc := newTestService(0, 0)
	for i := 0; i < defaultMaxSessions; i++ {
		if _, err := svc.Open(false); err != nil {
			t.Fatalf("open %d: %v", i, err)
		}
	}
	if _, err := svc.Open(false); !errors.Is(err, errs.TooManySessions) {
		t.Fatalf("err = %v", err)
	}
}

func TestUnknownDescriptor(t *testing.T) {
	svc := newTestService(4, 0)

	if err := svc.Close(9); !errors.Is(err, errs.BadDescriptor) {
		t.Errorf("Close: %v", err)
	}
	if _, err := svc.Get(9); !errors.Is(err, errs.BadDescriptor) {
		t.Errorf("Get: %v", err)
	}
	err := svc.Update(9, func(*domain.Session) error { return nil })
	if !errors.Is(err, errs.BadDescriptor) {
		t.Errorf("Update: %v", err)
	}
}

func TestGetReturnsCopy(t *testing.T) {
	svc := newTestService(4, 0)
	sess, _ := svc.Open(false)

	got, _ := svc.Get(sess.Desc)
	got.CWP = "/changed"

	again, _ := svc.Get(sess.Desc)
	if again.CWP != "/" {
		t.Fatalf("Get leaked a live pointer: cwp = %q", again.CWP)
	}

	if err := svc.Update(sess.Desc, func(s *domain.Session) error {
		s.CWP = "/cluster"
		return nil
	}); err != nil {
		t.Fatal(err)
	}
	again, _ = svc.Get(sess.Desc)
	if again.CWP != "/cluster" {
		t.Fatalf("Update not kept: cwp = %q", again.CWP)
	}
}

func TestReap(t *testing.T) {
	svc := newTestService(8, time.Minute)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	now := base
	svc.now = func() time.Time { return now }

	a, _ := svc.Open(false)
	b, _ := svc.Open(false)

	now = base.Add(50 * time.Second)
	svc.Get(b.Desc)

	reaped := svc.Reap(base.Add(90 * time.Second))
	if !reflect.DeepEqual(reaped, []int32{a.Desc}) {
		t.Fatalf("reaped = %v, want [%d]", reaped, a.Desc)
	}

	list := svc.List()
	if len(list) != 1 || list[0].Desc != b.Desc {
		t.Fatalf("List = %+v", list)
	}
}

func TestReapDisabled(t *testing.T) {
	svc := newTestService(8, 0)
	svc.Open(false)
	if reaped := svc.Reap(time.Now().Add(24 * time.Hour)); reaped != nil {
		t.Fatalf("reaped %v with no idle timeout", reaped)
	}
}
