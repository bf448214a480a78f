package sequencer

import "testing"

func TestNextDispatchesInOfferOrder(t *testing.T) {
	seq := New()
	seq.Offer([]string{"a", "b", "c"})

	id, ok := seq.Next()
	if !ok || id != "a" {
		t.Fatalf("expected first dispatch a, got %q ok=%v", id, ok)
	}
	if _, ok := seq.Next(); ok {
		t.Fatal("expected no dispatch while a job is in flight")
	}

	seq.Done("a")
	id, ok = seq.Next()
	if !ok || id != "b" {
		t.Fatalf("expected second dispatch b, got %q ok=%v", id, ok)
	}
}

func TestOfferDeduplicates(t *testing.T) {
	seq := New()
	seq.Offer([]string{"a", "b"})
	seq.Offer([]string{"a", "b", "c"})

	if got := seq.Len(); got != 3 {
		t.Fatalf("expected 3 queued ids, got %d", got)
	}

	id, _ := seq.Next()
	if id != "a" {
		t.Fatalf("expected a first, got %q", id)
	}
	// The in-flight id is not re-queued either.
	seq.Offer([]string{"a"})
	if got := seq.Len(); got != 2 {
		t.Fatalf("expected in-flight id ignored, got %d queued", got)
	}
}

func TestReofferedIDJoinsTail(t *testing.T) {
	seq := New()
	seq.Offer([]string{"a", "b"})

	id, _ := seq.Next()
	seq.Done(id)

	// a failed and was retried: the snapshot lists it again, but b is ahead.
	seq.Offer([]string{"a", "b"})
	id, _ = seq.Next()
	if id != "b" {
		t.Fatalf("expected b before re-offered a, got %q", id)
	}
	seq.Done(id)
	id, _ = seq.Next()
	if id != "a" {
		t.Fatalf("expected re-offered a at tail, got %q", id)
	}
}

func TestCancelRemovesUndispatchedOnly(t *testing.T) {
	seq := New()
	seq.Offer([]string{"a", "b"})

	id, _ := seq.Next()
	if id != "a" {
		t.Fatalf("expected a, got %q", id)
	}
	if seq.Cancel("a") {
		t.Fatal("expected cancel of in-flight job to be refused")
	}
	if !seq.Cancel("b") {
		t.Fatal("expected cancel of queued job to succeed")
	}
	if seq.Cancel("b") {
		t.Fatal("expected repeated cancel to report false")
	}

	seq.Done("a")
	if _, ok := seq.Next(); ok {
		t.Fatal("expected empty queue after cancel")
	}
}

func TestDoneIgnoresStaleID(t *testing.T) {
	seq := New()
	seq.Offer([]string{"a", "b"})

	id, _ := seq.Next()
	seq.Done("bogus")
	if _, ok := seq.Next(); ok {
		t.Fatal("expected stale completion to leave job in flight")
	}
	seq.Done(id)
	if _, ok := seq.Next(); !ok {
		t.Fatal("expected dispatch after real completion")
	}
}

func TestDrained(t *testing.T) {
	seq := New()
	if !seq.Drained() {
		t.Fatal("expected new sequencer drained")
	}
	seq.Offer([]string{"a"})
	if seq.Drained() {
		t.Fatal("expected queued sequencer not drained")
	}
	id, _ := seq.Next()
	if seq.Drained() {
		t.Fatal("expected in-flight sequencer not drained")
	}
	seq.Done(id)
	if !seq.Drained() {
		t.Fatal("expected drained after completion")
	}

	if current, ok := seq.InFlight(); ok {
		t.Fatalf("expected no in-flight job, got %q", current)
	}
}
