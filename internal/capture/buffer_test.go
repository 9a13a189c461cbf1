package capture

import "testing"

func TestBufferDropsOldestOnOverflow(t *testing.T) {
	b := NewBuffer[int](3)
	for i := 1; i <= 5; i++ {
		b.Put(i)
	}

	got := b.Drain()
	if len(got) != 3 {
		t.Fatalf("len: want=3 got=%d", len(got))
	}
	if got[0] != 3 || got[1] != 4 || got[2] != 5 {
		t.Fatalf("contents: want=[3 4 5] got=%v", got)
	}
	if b.Dropped() != 2 {
		t.Fatalf("dropped: want=2 got=%d", b.Dropped())
	}
}

func TestBufferPutReportsEviction(t *testing.T) {
	b := NewBuffer[string](1)
	if b.Put("a") {
		t.Fatal("first put should not evict")
	}
	if !b.Put("b") {
		t.Fatal("second put should evict")
	}
}

func TestBufferDrainEmpties(t *testing.T) {
	b := NewBuffer[int](4)
	b.Put(1)
	b.Put(2)

	if got := b.Drain(); len(got) != 2 {
		t.Fatalf("first drain: got=%v", got)
	}
	if b.Len() != 0 {
		t.Fatalf("len after drain: want=0 got=%d", b.Len())
	}
	if got := b.Drain(); len(got) != 0 {
		t.Fatalf("second drain: got=%v", got)
	}
}
