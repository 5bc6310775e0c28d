package lock

import "testing"

func TestLockModeString(t *testing.T) {
	if Shared.String() != "SHARED" || Exclusive.String() != "EXCLUSIVE" {
		t.Fatal("unexpected LockMode.String() output")
	}
}

func TestLockRequestMode(t *testing.T) {
	r := LockRequest[string]{ForWrite: true}
	if r.Mode() != Exclusive {
		t.Fatalf("want Exclusive, got %v", r.Mode())
	}
	r.ForWrite = false
	if r.Mode() != Shared {
		t.Fatalf("want Shared, got %v", r.Mode())
	}
}

func TestRequestLockGrantsCompatibleReaders(t *testing.T) {
	st := &Lock[string]{key: "row1"}
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")

	res := st.requestLock(a, false)
	if !res.Granted() {
		t.Fatalf("a: want immediate grant, got %+v", res)
	}
	res = st.requestLock(b, false)
	if !res.Granted() {
		t.Fatalf("b: want immediate grant, got %+v", res)
	}
	if len(st.owners) != 2 {
		t.Fatalf("want 2 owners, got %d", len(st.owners))
	}
}

func TestRequestLockQueuesConflictingWriter(t *testing.T) {
	st := &Lock[string]{key: "row1"}
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")

	st.requestLock(a, false)
	res := st.requestLock(b, true)
	if res.Granted() {
		t.Fatal("b: want conflict, not immediate grant")
	}
	if res.ConflictType != Blocked {
		t.Fatalf("want Blocked, got %v", res.ConflictType)
	}
	if len(st.waiters) != 1 {
		t.Fatalf("want b queued as waiter, got %d", len(st.waiters))
	}
}

func TestReleasePromotesNextWriter(t *testing.T) {
	st := &Lock[string]{key: "row1"}
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")

	st.requestLock(a, false)
	st.requestLock(b, true)

	granted := st.release(a, false)
	if len(granted) != 1 || granted[0] != b {
		t.Fatalf("want b promoted, got %v", granted)
	}
	if len(st.owners) != 1 || !st.owners[0].ForWrite {
		t.Fatalf("want b as sole write owner, got %+v", st.owners)
	}
	if len(st.waiters) != 0 {
		t.Fatalf("want no waiters left, got %d", len(st.waiters))
	}
}

func TestEmptyAfterAllReleased(t *testing.T) {
	st := &Lock[string]{key: "row1"}
	a := NewBasicLocker[string]("a")
	st.requestLock(a, true)
	st.release(a, false)
	if !st.Empty() {
		t.Fatal("want Empty after sole owner releases with no waiters")
	}
}
