package lock

import (
	"testing"
	"time"
)

func TestNewLockManagerValidation(t *testing.T) {
	if _, err := NewLockManager[string](0, 4); err != ErrInvalidTimeout {
		t.Fatalf("want ErrInvalidTimeout, got %v", err)
	}
	if _, err := NewLockManager[string](time.Second, 0); err != ErrInvalidShardCount {
		t.Fatalf("want ErrInvalidShardCount, got %v", err)
	}
	m, err := NewLockManager[string](time.Second, 1)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(m.shards) != 1 {
		t.Fatalf("want 1 shard, got %d", len(m.shards))
	}
}

func TestSharedLocksCoexist(t *testing.T) {
	m, _ := NewLockManager[string](time.Second, 4)
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")

	if conflict, err := m.Lock(a, "row1", false); err != nil || conflict != nil {
		t.Fatalf("a: want immediate grant, got conflict=%v err=%v", conflict, err)
	}
	if conflict, err := m.Lock(b, "row1", false); err != nil || conflict != nil {
		t.Fatalf("b: want immediate grant, got conflict=%v err=%v", conflict, err)
	}

	owners := m.GetOwners("row1")
	if len(owners) != 2 {
		t.Fatalf("want 2 owners, got %d", len(owners))
	}
}

func TestExclusiveExcludesReaders(t *testing.T) {
	m, _ := NewLockManager[string](50*time.Millisecond, 4)
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")

	if conflict, err := m.Lock(a, "row1", true); err != nil || conflict != nil {
		t.Fatalf("a: want immediate grant, got conflict=%v err=%v", conflict, err)
	}
	conflict, err := m.Lock(b, "row1", false)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if conflict == nil || conflict.Type != Timeout {
		t.Fatalf("b: want TIMEOUT conflict, got %v", conflict)
	}
}

func TestReleaseWakesWaiter(t *testing.T) {
	m, _ := NewLockManager[string](time.Second, 4)
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")

	if conflict, _ := m.Lock(a, "row1", true); conflict != nil {
		t.Fatalf("a: want immediate grant, got %v", conflict)
	}

	done := make(chan *LockConflict[string], 1)
	go func() {
		conflict, _ := m.Lock(b, "row1", true)
		done <- conflict
	}()

	time.Sleep(20 * time.Millisecond)
	m.ReleaseLock(a, "row1")

	select {
	case conflict := <-done:
		if conflict != nil {
			t.Fatalf("b: want eventual grant, got %v", conflict)
		}
	case <-time.After(time.Second):
		t.Fatal("b never woke up after release")
	}
}

func TestUpgradeInPlace(t *testing.T) {
	m, _ := NewLockManager[string](time.Second, 4)
	a := NewBasicLocker[string]("a")

	if conflict, _ := m.Lock(a, "row1", false); conflict != nil {
		t.Fatalf("want immediate read grant, got %v", conflict)
	}
	if conflict, err := m.Lock(a, "row1", true); err != nil || conflict != nil {
		t.Fatalf("want immediate upgrade grant (sole owner), got conflict=%v err=%v", conflict, err)
	}
	owners := m.GetOwners("row1")
	if len(owners) != 1 || !owners[0].ForWrite {
		t.Fatalf("want single write owner after upgrade, got %+v", owners)
	}
}

func TestStats(t *testing.T) {
	m, _ := NewLockManager[string](time.Second, 2)
	a := NewBasicLocker[string]("a")
	b := NewBasicLocker[string]("b")
	m.Lock(a, "row1", false)
	m.Lock(b, "row2", true)

	stats := m.Stats()
	if stats.Shards != 2 {
		t.Fatalf("want 2 shards, got %d", stats.Shards)
	}
	if stats.Owners != 2 {
		t.Fatalf("want 2 owners total, got %d", stats.Owners)
	}
}
