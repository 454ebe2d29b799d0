package buffer

import "testing"

func TestNewZeroFilled(t *testing.T) {
	b := New(2, 8)
	if b.NumChannels() != 2 || b.Len() != 8 {
		t.Fatalf("shape = %dx%d, want 2x8", b.NumChannels(), b.Len())
	}

	for ch := range b.NumChannels() {
		for i, v := range b.Channel(ch) {
			if v != 0 {
				t.Fatalf("Channel(%d)[%d] = %v, want 0", ch, i, v)
			}
		}
	}
}

func TestNewNegativeArguments(t *testing.T) {
	b := New(-1, -4)
	if b.NumChannels() != 0 || b.Len() != 0 {
		t.Fatalf("shape = %dx%d, want 0x0", b.NumChannels(), b.Len())
	}
}

func TestNewChannelsDoNotOverlap(t *testing.T) {
	b := New(2, 4)
	b.Channel(0)[3] = 1

	if b.Channel(1)[0] != 0 {
		t.Fatal("channel 0 write leaked into channel 1")
	}

	if cap(b.Channel(0)) != 4 {
		t.Fatalf("cap(Channel(0)) = %d, want 4", cap(b.Channel(0)))
	}
}

func TestFromChannelsSharesMemory(t *testing.T) {
	left := []float64{1, 2, 3}
	right := []float64{4, 5, 6}

	b, err := FromChannels([][]float64{left, right})
	if err != nil {
		t.Fatal(err)
	}

	b.Channel(1)[0] = 99
	if right[0] != 99 {
		t.Fatal("FromChannels should share underlying memory")
	}
}

func TestFromChannelsLengthMismatch(t *testing.T) {
	if _, err := FromChannels([][]float64{{1, 2}, {1}}); err == nil {
		t.Fatal("expected error for ragged channels")
	}
}

func TestViewWindowsAllChannels(t *testing.T) {
	b := New(2, 8)
	for ch := range 2 {
		for i := range 8 {
			b.Channel(ch)[i] = float64(10*ch + i)
		}
	}

	view := NewView(2)
	if !b.View(view, 3, 4) {
		t.Fatal("View rejected a valid window")
	}

	if view.NumChannels() != 2 || view.Len() != 4 {
		t.Fatalf("view shape = %dx%d, want 2x4", view.NumChannels(), view.Len())
	}

	if view.Channel(1)[0] != 13 {
		t.Fatalf("view.Channel(1)[0] = %v, want 13", view.Channel(1)[0])
	}

	view.Channel(0)[0] = -1
	if b.Channel(0)[3] != -1 {
		t.Fatal("view does not alias the parent block")
	}
}

func TestViewRejectsOutOfRange(t *testing.T) {
	b := New(1, 8)
	view := NewView(1)

	for _, tc := range []struct{ offset, length int }{{-1, 2}, {0, 9}, {6, 3}, {2, -1}} {
		if b.View(view, tc.offset, tc.length) {
			t.Fatalf("View(%d, %d) accepted an out-of-range window", tc.offset, tc.length)
		}
	}
}

func TestViewDoesNotAllocate(t *testing.T) {
	b := New(4, 1024)
	view := NewView(4)

	allocs := testing.AllocsPerRun(100, func() {
		b.View(view, 512, 256)
	})
	if allocs != 0 {
		t.Fatalf("View allocated %v times per run", allocs)
	}
}

func TestZeroAndCopy(t *testing.T) {
	b := New(2, 3)
	b.Channel(0)[1] = 5
	b.Channel(1)[2] = 7

	c := b.Copy()
	b.Zero()

	if c.Channel(0)[1] != 5 || c.Channel(1)[2] != 7 {
		t.Fatal("Copy did not deep copy")
	}

	for ch := range 2 {
		for _, v := range b.Channel(ch) {
			if v != 0 {
				t.Fatal("Zero left data behind")
			}
		}
	}
}

func TestCopyFromShorterSource(t *testing.T) {
	dst := New(2, 4)
	src := New(1, 2)
	src.Channel(0)[0], src.Channel(0)[1] = 1, 2

	if n := dst.CopyFrom(src); n != 2 {
		t.Fatalf("CopyFrom() = %d, want 2", n)
	}

	if dst.Channel(0)[1] != 2 || dst.Channel(0)[2] != 0 || dst.Channel(1)[0] != 0 {
		t.Fatalf("unexpected dst: %v", dst.Channels())
	}
}

func TestFloat32RoundTrip(t *testing.T) {
	b := New(2, 3)
	b.CopyFromFloat32([][]float32{{0.5, -0.25, 1}})

	if b.Channel(0)[1] != -0.25 {
		t.Fatalf("Channel(0)[1] = %v, want -0.25", b.Channel(0)[1])
	}

	for _, v := range b.Channel(1) {
		if v != 0 {
			t.Fatal("missing source channel should be zeroed")
		}
	}

	out := [][]float32{make([]float32, 3), make([]float32, 3), make([]float32, 3)}
	b.CopyToFloat32(out)

	if out[0][2] != 1 || out[2][0] != 0.5 {
		t.Fatalf("unexpected float32 output: %v", out)
	}
}

func TestSameShape(t *testing.T) {
	if !New(2, 4).SameShape(New(2, 4)) {
		t.Fatal("equal shapes reported different")
	}

	if New(2, 4).SameShape(New(1, 4)) || New(2, 4).SameShape(nil) {
		t.Fatal("different shapes reported equal")
	}
}
