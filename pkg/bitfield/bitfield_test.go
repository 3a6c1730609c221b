package bitfield

import "testing"

func TestGetSetOne(t *testing.T) {
	word := AllFreeWord
	for sub := uint32(0); sub < 16; sub++ {
		if Get(word, sub) != StatusFree {
			t.Fatalf("sub %d: want FREE before write", sub)
		}
	}
	word = SetOne(word, 3, StatusAllocHead)
	if Get(word, 3) != StatusAllocHead {
		t.Errorf("sub 3 = %v, want ALLOC_HEAD", Get(word, 3))
	}
	for sub := uint32(0); sub < 16; sub++ {
		if sub == 3 {
			continue
		}
		if Get(word, sub) != StatusFree {
			t.Errorf("sub %d disturbed by SetOne(3), got %v", sub, Get(word, sub))
		}
	}
}

func TestSetRun(t *testing.T) {
	word := AllFreeWord
	word = SetRun(word, 2, 5, StatusAlloc)
	for sub := uint32(0); sub < 16; sub++ {
		want := StatusFree
		if sub >= 2 && sub < 7 {
			want = StatusAlloc
		}
		if got := Get(word, sub); got != want {
			t.Errorf("sub %d = %v, want %v", sub, got, want)
		}
	}
}

func TestSetRunFullWord(t *testing.T) {
	word := SetRun(AllFreeWord, 0, 16, StatusSplit)
	for sub := uint32(0); sub < 16; sub++ {
		if got := Get(word, sub); got != StatusSplit {
			t.Errorf("sub %d = %v, want SPLIT", sub, got)
		}
	}
}

func TestCountLeadingAllocRun(t *testing.T) {
	word := SetRun(AllFreeWord, 0, 4, StatusAlloc)
	if got := CountLeadingAllocRun(word); got != 4 {
		t.Errorf("CountLeadingAllocRun = %d, want 4", got)
	}
	allAllocWord := SetRun(AllFreeWord, 0, 16, StatusAlloc)
	if got := CountLeadingAllocRun(allAllocWord); got != 16 {
		t.Errorf("CountLeadingAllocRun(all alloc) = %d, want 16", got)
	}
}

func TestCountLeadingFreeRun(t *testing.T) {
	word := SetRun(AllFreeWord, 5, 16-5, StatusAlloc)
	shifted := word << (0 * 2)
	if got := CountLeadingFreeRun(shifted); got != 5 {
		t.Errorf("CountLeadingFreeRun = %d, want 5", got)
	}
	if got := CountLeadingFreeRun(AllFreeWord); got != 16 {
		t.Errorf("CountLeadingFreeRun(all free) = %d, want 16", got)
	}
}

func TestCountTrailingFreeRun(t *testing.T) {
	// chunks [0,3) alloc, [3,16) free; probing the predecessor run ending
	// just before sub=10 should find chunks [3,10) free, i.e. 7 chunks.
	word := SetRun(AllFreeWord, 0, 3, StatusAlloc)
	shifted := word >> ((16 - 10) * 2)
	if got := CountTrailingFreeRun(shifted); got != 7 {
		t.Errorf("CountTrailingFreeRun = %d, want 7", got)
	}
}

func TestStatusString(t *testing.T) {
	cases := map[Status]string{
		StatusAlloc:     "ALLOC",
		StatusAllocHead: "ALLOC_HEAD",
		StatusFree:      "FREE",
		StatusSplit:     "SPLIT",
		StatusInvalid:   "INVALID",
	}
	for s, want := range cases {
		if got := s.String(); got != want {
			t.Errorf("%v.String() = %q, want %q", s, got, want)
		}
	}
}
