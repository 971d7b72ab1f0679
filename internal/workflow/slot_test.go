package workflow

import (
	"context"
	"errors"
	"testing"
	"time"
)

type stubCanceler struct {
	cancelled int
	err       error
}

func waitActive(t *testing.T, slot *SessionSlot) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !slot.Active() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the slot to become active")
		}
		time.Sleep(time.Millisecond)
	}
}

func (s *stubCanceler) Cancel(ctx context.Context) error {
	s.cancelled++
	return s.err
}

func TestSessionSlotUseClears(t *testing.T) {
	slot := &SessionSlot{}
	sess := &stubCanceler{}

	err := slot.Use(sess, func() error {
		if !slot.Active() {
			t.Error("expected the slot to be active during Use")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Use returned error: %v", err)
	}
	if slot.Active() {
		t.Error("expected the slot to be cleared after Use")
	}
}

func TestSessionSlotUseClearsOnError(t *testing.T) {
	slot := &SessionSlot{}
	boom := errors.New("prompt failed")

	err := slot.Use(&stubCanceler{}, func() error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("Use error = %v, want %v", err, boom)
	}
	if slot.Active() {
		t.Error("expected the slot to be cleared after a failed Use")
	}
}

func TestSessionSlotUseClearsOnPanic(t *testing.T) {
	slot := &SessionSlot{}

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected the panic to propagate")
			}
		}()
		_ = slot.Use(&stubCanceler{}, func() error { panic("step blew up") })
	}()

	if slot.Active() {
		t.Error("expected the slot to be cleared after a panic")
	}
}

func TestSessionSlotCancelActiveNoSession(t *testing.T) {
	slot := &SessionSlot{}
	if err := slot.CancelActive(context.Background()); err != nil {
		t.Fatalf("CancelActive without a session returned error: %v", err)
	}
}

func TestSessionSlotCancelActiveForwards(t *testing.T) {
	slot := &SessionSlot{}
	sess := &stubCanceler{}

	done := make(chan struct{})
	release := make(chan struct{})
	go func() {
		defer close(done)
		_ = slot.Use(sess, func() error {
			<-release
			return nil
		})
	}()

	waitActive(t, slot)
	if err := slot.CancelActive(context.Background()); err != nil {
		t.Fatalf("CancelActive returned error: %v", err)
	}
	close(release)
	<-done

	if sess.cancelled != 1 {
		t.Errorf("cancelled %d times, want 1", sess.cancelled)
	}
}

func TestSessionSlotCancelActiveError(t *testing.T) {
	slot := &SessionSlot{}
	boom := errors.New("connection lost")
	sess := &stubCanceler{err: boom}

	done := make(chan struct{})
	release := make(chan struct{})
	go func() {
		defer close(done)
		_ = slot.Use(sess, func() error {
			<-release
			return nil
		})
	}()

	waitActive(t, slot)
	err := slot.CancelActive(context.Background())
	close(release)
	<-done

	if !errors.Is(err, boom) {
		t.Errorf("CancelActive error = %v, want %v", err, boom)
	}
}
