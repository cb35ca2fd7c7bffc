package storage

import (
	"testing"
	"time"
)

// A full buffer drops records instead of blocking the request path, and
// reports each drop through the callback.
func TestHistoryWriter_FullBufferDrops(t *testing.T) {
	drops := 0
	// Not started: nothing drains the buffer, so capacity 1 fills on the
	// first Log and every later record is dropped.
	w := NewHistoryWriter(nil, 1, func() { drops++ })

	w.Log(&QueryRecord{ID: "a", CreatedAt: time.Now()})
	w.Log(&QueryRecord{ID: "b", CreatedAt: time.Now()})
	w.Log(&QueryRecord{ID: "c", CreatedAt: time.Now()})

	if drops != 2 {
		t.Errorf("drops = %d, want 2", drops)
	}
	if len(w.ch) != 1 {
		t.Errorf("buffered = %d, want 1", len(w.ch))
	}
}

func TestHistoryWriter_NilDropCallback(t *testing.T) {
	w := NewHistoryWriter(nil, 1, nil)

	w.Log(&QueryRecord{ID: "a"})
	w.Log(&QueryRecord{ID: "b"}) // must not panic
}

func TestNewHistoryWriter_DefaultBufferSize(t *testing.T) {
	w := NewHistoryWriter(nil, 0, nil)

	if cap(w.ch) != 10000 {
		t.Errorf("cap = %d, want 10000", cap(w.ch))
	}
}
