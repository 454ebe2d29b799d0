package echo

import (
	"math"
	"sync"
	"testing"

	"github.com/cwbudde/algo-dlay/dsp/buffer"
	"github.com/cwbudde/algo-dlay/dsp/core"
	"github.com/cwbudde/algo-dlay/dsp/param"
	"github.com/cwbudde/algo-dlay/dsp/shaper"
	"github.com/cwbudde/algo-dlay/internal/testutil"
	"github.com/cwbudde/algo-dlay/measure/harmonics"
)

func newProcessor(t *testing.T, sampleRate float64, blockSize, channels int, opts ...Option) *Processor {
	t.Helper()

	p, err := New(opts...)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Prepare(sampleRate, blockSize, channels); err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}

	return p
}

func runMono(p *Processor, x []float64) []float64 {
	return testutil.StreamMono(x, p.Spec().BlockSize, func(in, out *buffer.Block) {
		out.CopyFrom(in)
		p.ProcessBlock(out)
	})
}

func TestNewValidation(t *testing.T) {
	opts := []Option{
		WithSmoothing(-1),
		WithSmoothing(math.NaN()),
		WithMaxDelay(0.5),
		WithTable(nil),
		WithValues(param.Values{RateMs: 2000}),
	}

	for i, opt := range opts {
		if _, err := New(opt); err == nil {
			t.Fatalf("option %d: expected error", i)
		}
	}
}

func TestPrepareValidation(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := p.Prepare(0, 512, 1); err == nil {
		t.Fatal("expected error for zero sample rate")
	}

	if err := p.Prepare(48000, 0, 1); err == nil {
		t.Fatal("expected error for zero block size")
	}

	if err := p.Prepare(48000, 512, 0); err == nil {
		t.Fatal("expected error for zero channels")
	}

	if err := p.Prepare(1e15, 512, 1); err == nil {
		t.Fatal("expected error for sample rate above the supported maximum")
	}

	if err := p.Prepare(float64(math.MaxUint32), 512, 1); err == nil {
		t.Fatal("expected error for a garbage WAV header rate")
	}

	if p.Prepared() {
		t.Fatal("processor must stay unprepared")
	}
}

func TestFailedPrepareKeepsStoreRate(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)

	if err := p.Prepare(96000, 512, core.MaxChannels+1); err == nil {
		t.Fatal("expected error for too many channels")
	}

	if got := p.Params().SampleRate(); got != 48000 {
		t.Fatalf("store sample rate = %v after failed Prepare, want 48000", got)
	}

	if err := p.Prepare(1e15, 512, 1); err == nil {
		t.Fatal("expected error for huge sample rate")
	}

	if got := p.Params().SampleRate(); got != 48000 {
		t.Fatalf("store sample rate = %v after failed Prepare, want 48000", got)
	}
}

func TestImpulseEchoes(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(500)
	p.SetFeedback(-6)
	p.SetWet(50)
	p.SetInsertBypass(true)

	x := testutil.Impulse(100000, 0)
	got := runMono(p, x)

	// The delayed block is read before feedback is written, so the first
	// repeat carries wet only and each later one another factor of fb.
	fb := math.Pow(10, -6.0/20)
	want := map[int]float64{
		0:     1,
		24000: 0.5,
		48000: 0.5 * fb,
		72000: 0.5 * fb * fb,
		96000: 0.5 * fb * fb * fb,
	}

	for n, v := range got {
		w := want[n]
		if math.Abs(v-w) > 1e-12 {
			t.Fatalf("sample %d: got %v want %v", n, v, w)
		}
	}
}

func TestImpulseEchoesStereo(t *testing.T) {
	p := newProcessor(t, 48000, 256, 2)
	p.SetRate(100)
	p.SetFeedback(-6)
	p.SetWet(100)
	p.SetInsertBypass(true)

	block := buffer.New(2, 256)
	var left, right []float64

	for b := range 40 {
		block.Zero()

		if b == 0 {
			block.Channel(0)[0] = 1
			block.Channel(1)[10] = -1
		}

		p.ProcessBlock(block)
		left = append(left, block.Channel(0)...)
		right = append(right, block.Channel(1)...)
	}

	if left[4800] != 1 || right[4810] != -1 {
		t.Fatalf("first echo: left %v right %v", left[4800], right[4810])
	}

	if left[4810] != 0 || right[4800] != 0 {
		t.Fatal("channels leaked")
	}
}

func TestInsertColorsRecordedSignal(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(100)
	p.SetFeedback(-120)
	p.SetWet(100)
	p.SetThreshold(-40)
	p.SetAttack(0)

	x := testutil.DeterministicSine(440, 48000, 0.9, 48000)
	got := runMono(p, x)
	testutil.RequireFinite(t, got)

	// After the dry signal, the wet path is the shaped, filtered input
	// delayed by 4800 samples.
	wet := make([]float64, 0, 4800)
	for n := 20000; n < 24800; n++ {
		wet = append(wet, got[n]-x[n])
	}

	diff := 0.0
	for i, v := range wet {
		diff = math.Max(diff, math.Abs(v-x[20000+i-4800]))
	}

	if diff < 1e-3 {
		t.Fatal("insert did not change the recorded signal")
	}

	if p.Shaper().Envelope(0) == 0 {
		t.Fatal("envelope did not follow the input")
	}
}

func TestBypassLeavesEchoUncolored(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(100)
	p.SetFeedback(-120)
	p.SetWet(100)
	p.SetInsertBypass(true)

	x := testutil.DeterministicNoise(8, 0.9, 24000)
	got := runMono(p, x)

	for n := 4800; n < len(x); n++ {
		if math.Abs(got[n]-x[n]-x[n-4800]) > 1e-12 {
			t.Fatalf("sample %d: echo colored under bypass", n)
		}
	}

	if env := p.Shaper().Envelope(0); env != 0 {
		t.Fatalf("envelope moved under bypass: %v", env)
	}
}

func TestRateChangeClearsBuffer(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(500)
	p.SetWet(100)
	p.SetFeedback(-3)
	p.SetInsertBypass(true)

	block := buffer.New(1, 512)
	block.Channel(0)[0] = 1
	p.ProcessBlock(block)

	for range 10 {
		block.Zero()
		p.ProcessBlock(block)
	}

	p.SetRate(250)

	for b := range 200 {
		block.Zero()
		p.ProcessBlock(block)

		for i, v := range block.Channel(0) {
			if v != 0 {
				t.Fatalf("block %d sample %d: stale echo %v after rate change", b, i, v)
			}
		}
	}

	if got := p.DelayLine().ReadPosition(12000); got < 0 {
		t.Fatalf("read position %d", got)
	}
}

// insertAfterLoudInput drives two identical processors with a loud sine,
// applies change to the first only, then records one silent block through
// the inserts of both.
func insertAfterLoudInput(t *testing.T, change func(p *Processor)) (changed, reference []float64, envBefore, envChanged, envReference float64) {
	t.Helper()

	a := newProcessor(t, 48000, 512, 1)
	b := newProcessor(t, 48000, 512, 1)

	for _, p := range []*Processor{a, b} {
		p.SetRate(500)
		p.SetThreshold(-20)
		p.SetAttack(1)
		p.SetRelease(200)
	}

	loud := testutil.DeterministicSine(1000, 48000, 0.8, 40*512)
	block := buffer.New(1, 512)

	for _, p := range []*Processor{a, b} {
		for off := 0; off < len(loud); off += 512 {
			copy(block.Channel(0), loud[off:off+512])
			p.ProcessBlock(block)
		}
	}

	envBefore = a.Shaper().Envelope(0)

	change(a)

	silent := buffer.New(1, 512)
	for _, p := range []*Processor{a, b} {
		p.WriteBlock(silent)
		p.ProcessInsert()
	}

	changed = append([]float64(nil), a.InsertEffectRegion().Channel(0)...)
	reference = append([]float64(nil), b.InsertEffectRegion().Channel(0)...)

	return changed, reference, envBefore, a.Shaper().Envelope(0), b.Shaper().Envelope(0)
}

func TestRateChangeKeepsInsertState(t *testing.T) {
	changed, reference, before, env, refEnv := insertAfterLoudInput(t, func(p *Processor) {
		p.SetRate(250)
	})

	if before < 0.9 {
		t.Fatalf("envelope only reached %v under loud input", before)
	}

	if env != refEnv || env < 0.9*before {
		t.Fatalf("envelope after rate change = %v, want continuous %v (before %v)", env, refEnv, before)
	}

	if _, peak := testutil.PeakIndex(changed); peak == 0 {
		t.Fatal("filter ringing lost after rate change")
	}

	testutil.RequireSliceNearlyEqual(t, changed, reference, 0)
}

func TestClearKeepsInsertState(t *testing.T) {
	changed, reference, before, env, refEnv := insertAfterLoudInput(t, func(p *Processor) {
		p.Clear()
	})

	if env != refEnv || env < 0.9*before {
		t.Fatalf("envelope after Clear = %v, want continuous %v (before %v)", env, refEnv, before)
	}

	if _, peak := testutil.PeakIndex(changed); peak == 0 {
		t.Fatal("filter ringing lost after Clear")
	}

	testutil.RequireSliceNearlyEqual(t, changed, reference, 0)
}

// recordInsert streams a sine through p and returns what the inserts
// wrote into the delay buffer, skipping the first skip samples.
func recordInsert(p *Processor, x []float64, skip int) []float64 {
	block := buffer.New(1, p.Spec().BlockSize)

	var rec []float64

	for off := 0; off+block.Len() <= len(x); off += block.Len() {
		copy(block.Channel(0), x[off:off+block.Len()])
		p.WriteBlock(block)
		p.ProcessInsert()
		rec = append(rec, p.InsertEffectRegion().Channel(0)...)
		p.ReadBlock(block)
	}

	return rec[skip:]
}

func TestChebyshevTableAddsEvenHarmonics(t *testing.T) {
	const (
		sr   = 48000.0
		f0   = 937.5
		n    = 8192
		skip = 19 * 512
	)

	weights := harmonics.ChebyshevWeights([]float64{1, 0.5})

	table, err := shaper.NewTable(shaper.Chebyshev(weights))
	if err != nil {
		t.Fatalf("NewTable() error = %v", err)
	}

	x := testutil.DeterministicSine(f0, sr, 0.9, skip+n)

	matched := newProcessor(t, sr, 512, 1, WithTable(table))
	matched.SetThreshold(-40)
	matched.SetAttack(1)

	if matched.Shaper().Table() != table {
		t.Fatal("processor does not use the supplied table")
	}

	plain := newProcessor(t, sr, 512, 1)
	plain.SetThreshold(-40)
	plain.SetAttack(1)

	got, err := harmonics.Analyze(recordInsert(matched, x, skip), sr, f0, 3)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	ref, err := harmonics.Analyze(recordInsert(plain, x, skip), sr, f0, 3)
	if err != nil {
		t.Fatalf("Analyze() error = %v", err)
	}

	if got.Amplitudes[1] < 0.05 {
		t.Fatalf("second harmonic %v with Chebyshev table, want > 0.05", got.Amplitudes[1])
	}

	if ref.Amplitudes[1] > 0.01 {
		t.Fatalf("second harmonic %v with odd tanh table, want < 0.01", ref.Amplitudes[1])
	}
}

func TestSameRateKeepsBuffer(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetWet(100)
	p.SetInsertBypass(true)

	x := testutil.Impulse(30000, 0)

	got := testutil.StreamMono(x, 512, func(in, out *buffer.Block) {
		p.SetRate(500)
		out.CopyFrom(in)
		p.ProcessBlock(out)
	})

	if got[24000] != 1 {
		t.Fatalf("echo lost after re-setting the same rate: %v", got[24000])
	}
}

func TestPassThroughWhenUnprepared(t *testing.T) {
	p, err := New()
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	x := testutil.DeterministicNoise(1, 1, 512)
	block, _ := buffer.FromChannels([][]float64{append([]float64(nil), x...)})

	p.ProcessBlock(block)
	p.WriteBlock(block)
	p.ProcessInsert()
	p.ReadBlock(block)
	p.Clear()

	testutil.RequireSliceNearlyEqual(t, block.Channel(0), x, 0)

	if p.InsertEffectRegion() != nil {
		t.Fatal("unprepared processor exposed a region")
	}
}

func TestPassThroughOnShapeMismatch(t *testing.T) {
	p := newProcessor(t, 48000, 512, 2)

	for _, block := range []*buffer.Block{buffer.New(2, 256), buffer.New(1, 512), nil} {
		if block != nil {
			copy(block.Channel(0), testutil.DC(0.5, block.Len()))
		}

		p.ProcessBlock(block)

		if block != nil && block.Channel(0)[0] != 0.5 {
			t.Fatal("mismatched block modified")
		}
	}

	if p.DelayLine().WritePosition() != 0 {
		t.Fatal("mismatched block advanced the delay line")
	}
}

func TestInsertEffectRegionIsRecordedSignal(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(0)
	p.SetWet(100)
	p.SetInsertBypass(true)

	in := buffer.New(1, 512)
	copy(in.Channel(0), testutil.DC(0.25, 512))

	p.WriteBlock(in)

	region := p.InsertEffectRegion()
	if region == nil || region.Len() != 512 {
		t.Fatal("no insert region")
	}

	testutil.RequireSliceNearlyEqual(t, region.Channel(0), in.Channel(0), 0)

	// A caller-side insert: mute the recording.
	region.Zero()

	out := buffer.New(1, 512)
	p.ReadBlock(out)

	for i, v := range out.Channel(0) {
		if v != 0 {
			t.Fatalf("sample %d: %v, edit to region not honored", i, v)
		}
	}
}

func TestProcessInsertRunsOncePerBlock(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(0)
	p.SetWet(100)

	in := buffer.New(1, 512)
	copy(in.Channel(0), testutil.DeterministicSine(100, 48000, 0.5, 512))

	p.WriteBlock(in)
	p.ProcessInsert()

	once := append([]float64(nil), p.InsertEffectRegion().Channel(0)...)

	p.ProcessInsert()

	testutil.RequireSliceNearlyEqual(t, p.InsertEffectRegion().Channel(0), once, 0)
}

func TestWetSmoothing(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1)
	p.SetRate(0)
	p.SetFeedback(-120)
	p.SetInsertBypass(true)

	// Let the feedback ramp settle.
	block := buffer.New(1, 512)
	for range 4 {
		block.Zero()
		p.ProcessBlock(block)
	}

	p.SetWet(100)

	copy(block.Channel(0), testutil.Ones(512))
	p.ProcessBlock(block)

	prev := 0.0
	for i, v := range block.Channel(0) {
		if v <= prev {
			t.Fatalf("sample %d: wet not ramping (%v <= %v)", i, v, prev)
		}

		prev = v
	}

	if first := block.Channel(0)[0]; math.Abs(first-(1.75+0.25/960)) > 1e-12 {
		t.Fatalf("first sample %v", first)
	}

	if last := block.Channel(0)[511]; last >= 2 {
		t.Fatalf("ramp finished too early: %v", last)
	}
}

func TestNoSmoothingJumps(t *testing.T) {
	p := newProcessor(t, 48000, 512, 1, WithSmoothing(0))
	p.SetRate(0)
	p.SetInsertBypass(true)
	p.SetWet(100)

	block := buffer.New(1, 512)
	copy(block.Channel(0), testutil.Ones(512))
	p.ProcessBlock(block)

	for i, v := range block.Channel(0) {
		if v != 2 {
			t.Fatalf("sample %d: %v, want 2", i, v)
		}
	}
}

func TestWithValuesAppliesInitialControls(t *testing.T) {
	v := param.DefaultValues()
	v.RateMs = 250
	v.Bypass = true

	p := newProcessor(t, 48000, 512, 1, WithValues(v))

	if got := p.Params().Snapshot(); got.DelaySamples != 12000 || !got.Bypass {
		t.Fatalf("snapshot = %+v", got)
	}
}

func TestTailSamples(t *testing.T) {
	tests := []struct {
		delay    int
		fb, wet  float64
		want     int
		infinite bool
	}{
		{24000, 0.501, 0.5, 240000, false},
		{24000, 0, 0.5, 24000, false},
		{24000, 1, 0.5, -1, true},
		{24000, 0.5, 0, 0, false},
		{0, 0.5, 1, 0, false},
	}

	for _, tc := range tests {
		if got := TailSamples(tc.delay, tc.fb, tc.wet); got != tc.want {
			t.Fatalf("TailSamples(%d, %v, %v) = %d, want %d", tc.delay, tc.fb, tc.wet, got, tc.want)
		}
	}

	p := newProcessor(t, 48000, 512, 1)
	if p.TailSamples() <= 24000 {
		t.Fatalf("default tail %d too short", p.TailSamples())
	}
}

func TestConcurrentControl(t *testing.T) {
	p := newProcessor(t, 48000, 256, 2)

	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()

		for i := range 500 {
			f := float64(i % 10)
			p.SetRate(100 + 50*f)
			p.SetFeedback(-3 * f)
			p.SetWet(10 * f)
			p.SetThreshold(-5 * f)
			p.SetAttack(f)
			p.SetRelease(100 * f)
			p.SetCutoff(1000 + 200*f)
			p.SetResonance(f / 10)
			p.SetInsertBypass(i%3 == 0)
		}
	}()

	block := buffer.New(2, 256)
	for b := range 400 {
		copy(block.Channel(0), testutil.DeterministicNoise(int64(b), 0.8, 256))
		copy(block.Channel(1), testutil.DeterministicNoise(int64(b+1000), 0.8, 256))
		p.ProcessBlock(block)

		testutil.RequireFinite(t, block.Channel(0))
		testutil.RequireFinite(t, block.Channel(1))
	}

	wg.Wait()
}

func TestProcessBlockDoesNotAllocate(t *testing.T) {
	p := newProcessor(t, 48000, 512, 2)
	block := buffer.New(2, 512)
	copy(block.Channel(0), testutil.DeterministicNoise(1, 0.5, 512))

	testutil.RequireZeroAllocs(t, "ProcessBlock", func() {
		p.ProcessBlock(block)
	})
}

func BenchmarkProcessBlockStereo512(b *testing.B) {
	p, _ := New()
	_ = p.Prepare(48000, 512, 2)

	block := buffer.New(2, 512)
	noise := testutil.DeterministicNoise(1, 0.5, 512)

	b.ReportAllocs()

	for b.Loop() {
		copy(block.Channel(0), noise)
		copy(block.Channel(1), noise)
		p.ProcessBlock(block)
	}
}
