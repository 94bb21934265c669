package bitvec

import "testing"

func TestSetGetCount(t *testing.T) {
	bv := New(130)
	if bv.Any() {
		t.Fatal("fresh vector has set bits")
	}
	bv.Set(0, true)
	bv.Set(64, true)
	bv.Set(129, true)
	for _, i := range []int{0, 64, 129} {
		if !bv.Get(i) {
			t.Fatalf("bit %d not set", i)
		}
	}
	if bv.Get(1) {
		t.Fatal("bit 1 unexpectedly set")
	}
	if got := bv.Count(); got != 3 {
		t.Fatalf("count = %d, want 3", got)
	}
	bv.Set(64, false)
	if bv.Get(64) || bv.Count() != 2 {
		t.Fatal("clearing bit 64 failed")
	}
}

func TestResetAndResize(t *testing.T) {
	bv := New(10)
	for i := 0; i < 10; i++ {
		bv.Set(i, true)
	}
	if !bv.All() {
		t.Fatal("expected all bits set")
	}
	bv.Reset()
	if bv.Any() {
		t.Fatal("reset left bits set")
	}

	bv.Set(3, true)
	bv.Resize(200)
	if bv.Len() != 200 || bv.Any() {
		t.Fatal("resize did not clear bits")
	}
	bv.Set(199, true)
	if !bv.Get(199) {
		t.Fatal("bit 199 not set after resize")
	}
}
