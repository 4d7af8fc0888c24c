package astilibav

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astimux"
	"github.com/stretchr/testify/require"
)

type muxerTestFilterer struct {
	closed     bool
	content    string
	delay      int
	doubleRate bool
	pushed     int
	q          []*astiav.Frame
}

func (f *muxerTestFilterer) Close() error     { f.closed = true; return nil }
func (f *muxerTestFilterer) Content() string  { return f.content }
func (f *muxerTestFilterer) Delay() int       { return f.delay }
func (f *muxerTestFilterer) DoubleRate() bool { return f.doubleRate }

func (f *muxerTestFilterer) PollAll() []*astiav.Frame {
	fs := f.q
	f.q = nil
	return fs
}

func (f *muxerTestFilterer) PollOne() (*astiav.Frame, bool) {
	if len(f.q) == 0 {
		return nil, false
	}
	fm := f.q[0]
	f.q = f.q[1:]
	return fm, true
}

func (f *muxerTestFilterer) Push(fm *astiav.Frame) error {
	f.pushed++
	f.q = append(f.q, fm)
	return nil
}

type muxerTestFiltererFactory struct {
	fts []*muxerTestFilterer
}

func (ff *muxerTestFiltererFactory) new(content string) (FrameFilterer, error) {
	ft := &muxerTestFilterer{content: content}
	ff.fts = append(ff.fts, ft)
	return ft, nil
}

func (ff *muxerTestFiltererFactory) last() *muxerTestFilterer {
	return ff.fts[len(ff.fts)-1]
}

func newTestMuxer(t *testing.T, c *astikit.Closer, format Format, inFrameRate astiav.Rational) (m *Muxer, ff *muxerTestFiltererFactory, eh *astimux.EventHandler) {
	eh = astimux.NewEventHandler()
	ff = &muxerTestFiltererFactory{}
	var err error
	m, err = NewMuxer(MuxerOptions{
		InFrameRate:  inFrameRate,
		NewFilterer:  ff.new,
		OutputFormat: format,
	}, eh, c)
	require.NoError(t, err)
	return
}

func TestMuxerSimple(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, FormatPAL, astiav.NewRational(25, 1))

	// Nothing buffered
	f, ok, err := m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)
	require.Nil(t, f)
	require.Equal(t, DisplayModeInvalid, m.DisplayMode())

	// Placeholders fix the display mode to simple
	require.NoError(t, m.PushVideoPlaceholder())
	require.Equal(t, DisplayModeSimple, m.DisplayMode())

	// Video alone is not enough
	_, ok, err = m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.PushAudioSilence())
	f, ok, err = m.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, f.Video)
	require.Nil(t, f.SecondField)
	require.Len(t, f.Samples, 1920)

	_, ok, err = m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMuxerReadiness(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, FormatPAL, astiav.NewRational(25, 1))

	require.False(t, m.VideoReady())
	require.False(t, m.AudioReady())

	require.NoError(t, m.PushVideoPlaceholder())
	require.True(t, m.VideoReady())
	require.False(t, m.AudioReady())

	require.NoError(t, m.PushAudioSilence())
	require.True(t, m.AudioReady())

	// A flushed stream is always ready so the other side can catch up
	m2, _, _ := newTestMuxer(t, c, FormatPAL, astiav.NewRational(25, 1))
	m2.FlushVideo()
	require.True(t, m2.VideoReady())
	require.False(t, m2.AudioReady())
}

func TestMuxerOverflow(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, FormatPAL, astiav.NewRational(25, 1))

	for i := 0; i < 32; i++ {
		require.NoError(t, m.PushVideoPlaceholder())
	}
	require.ErrorIs(t, m.PushVideoPlaceholder(), ErrVideoOverflow)

	for i := 0; i < 32; i++ {
		require.NoError(t, m.PushAudioSilence())
	}
	require.ErrorIs(t, m.PushAudioSilence(), ErrAudioOverflow)

	// Flushing opens a fresh generation with its own allowance
	m.FlushVideo()
	m.FlushAudio()
	require.NoError(t, m.PushVideoPlaceholder())
	require.NoError(t, m.PushAudioSilence())
}

func TestMuxerTruncation(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, eh := newTestMuxer(t, c, FormatPAL, astiav.NewRational(25, 1))

	var truncated []EventMuxerTruncated
	eh.AddForEventName(EventNameMuxerTruncated, func(e astimux.Event) bool {
		truncated = append(truncated, e.Payload.(EventMuxerTruncated))
		return false
	})

	// One frame and a partial sample block, then a discontinuity
	require.NoError(t, m.PushVideoPlaceholder())
	require.NoError(t, m.PushAudio(make([]int32, 500)))
	m.FlushVideo()
	m.FlushAudio()
	require.NoError(t, m.PushVideoPlaceholder())
	require.NoError(t, m.PushAudioSilence())

	// Leftovers before the discontinuity are dropped, the next generation
	// produces the output
	f, ok, err := m.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, f.Samples, 1920)
	require.Equal(t, []EventMuxerTruncated{{Frames: 1, Samples: 500}}, truncated)
}

func TestMuxerDuplicate(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, Format1080p50, astiav.NewRational(25, 1))
	m.displayMode = DisplayModeDuplicate

	require.NoError(t, m.PushVideoPlaceholder())
	require.NoError(t, m.PushAudio(make([]int32, 960)))

	// One sample block is not enough for two outputs
	_, ok, err := m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, m.PushAudio(make([]int32, 960)))
	f1, ok, err := m.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	f2, ok, err := m.TryPop()
	require.NoError(t, err)
	require.True(t, ok)

	// Same content twice, each with its own scheduled audio
	require.Same(t, f1.Video, f2.Video)
	require.Len(t, f1.Samples, 960)
	require.Len(t, f2.Samples, 960)

	_, ok, err = m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)

	// The shared frame is only pooled once both outputs are done with it
	poolHas := func(f *astiav.Frame) bool {
		for _, v := range m.p.fs {
			if v == f {
				return true
			}
		}
		return false
	}
	m.Recycle(f1)
	require.False(t, poolHas(f1.Video))
	m.Recycle(f2)
	require.True(t, poolHas(f2.Video))
	require.Empty(t, m.shared)
}

func TestMuxerHalf(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, FormatPAL, astiav.NewRational(50, 1))
	m.displayMode = DisplayModeHalf

	f1 := astiav.AllocFrame()
	defer f1.Free()
	f2 := astiav.AllocFrame()
	defer f2.Free()

	require.NoError(t, m.PushVideo(f1))
	require.NoError(t, m.PushAudioSilence())

	// Half mode consumes frames in pairs
	_, ok, err := m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)

	// The first frame of each pair survives, the second is discarded
	require.NoError(t, m.PushVideo(f2))
	f, ok, err := m.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	require.Same(t, f1, f.Video)
	require.Nil(t, f.SecondField)
	require.Len(t, f.Samples, 1920)

	_, ok, err = m.TryPop()
	require.NoError(t, err)
	require.False(t, ok)
}

func TestMuxerInterlace(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, Format1080i50, astiav.NewRational(50, 1))
	m.displayMode = DisplayModeInterlace

	require.NoError(t, m.PushVideoPlaceholder())
	require.NoError(t, m.PushVideoPlaceholder())
	require.NoError(t, m.PushAudioSilence())

	f, ok, err := m.TryPop()
	require.NoError(t, err)
	require.True(t, ok)
	require.NotNil(t, f.Video)
	require.NotNil(t, f.SecondField)
	require.NotSame(t, f.Video, f.SecondField)
	require.Equal(t, FieldModeUpper, f.FieldMode)
	require.Len(t, f.Samples, 1920)
}

func TestMuxerNTSCCadence(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, _, _ := newTestMuxer(t, c, FormatNTSC, astiav.NewRational(30000, 1001))

	// Silence tracks the cadence schedule, outputs consume it exactly
	var sizes []int
	for i := 0; i < 10; i++ {
		require.NoError(t, m.PushVideoPlaceholder())
		require.NoError(t, m.PushAudioSilence())
		f, ok, err := m.TryPop()
		require.NoError(t, err)
		require.True(t, ok)
		sizes = append(sizes, len(f.Samples))
	}
	require.Equal(t, []int{1602, 1602, 1601, 1602, 1601, 1602, 1602, 1601, 1602, 1601}, sizes)
}

func TestMuxerNbFrames(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	m, ff, _ := newTestMuxer(t, c, FormatPAL, astiav.NewRational(25, 1))

	m.displayMode = DisplayModeSimple
	require.Equal(t, uint32(10), m.NbFrames(10))

	m.displayMode = DisplayModeInterlace
	require.Equal(t, uint32(5), m.NbFrames(10))
	require.Equal(t, uint32(5), m.NbFrames(11))

	m.displayMode = DisplayModeDuplicate
	require.Equal(t, uint32(20), m.NbFrames(10))

	// A double rate filter doubles the count before assembly halves it
	ff.last().doubleRate = true
	m.displayMode = DisplayModeHalf
	require.Equal(t, uint32(10), m.NbFrames(10))
	m.displayMode = DisplayModeDeinterlaceBob
	require.Equal(t, uint32(20), m.NbFrames(10))
}

func TestMuxerDisplayModeResolution(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()

	// Matched progressive rates resolve to simple without touching the
	// filter content
	m, ff, eh := newTestMuxer(t, c, Format720p50, astiav.NewRational(50, 1))
	var resolved []EventMuxerDisplayMode
	eh.AddForEventName(EventNameMuxerDisplayModeResolved, func(e astimux.Event) bool {
		resolved = append(resolved, e.Payload.(EventMuxerDisplayMode))
		return false
	})
	f := astiav.AllocFrame()
	defer f.Free()
	require.NoError(t, m.PushVideo(f))
	require.Equal(t, DisplayModeSimple, m.DisplayMode())
	require.Len(t, ff.fts, 1)
	require.Equal(t, "", ff.last().Content())
	require.Len(t, resolved, 1)
	require.Equal(t, DisplayModeSimple, resolved[0].DisplayMode)
	require.False(t, resolved[0].Interlaced)

	// Resolution runs once
	require.NoError(t, m.PushVideo(f))
	require.Len(t, resolved, 1)

	// Sub-HD content below 50 fps is treated as mis-tagged interlaced and
	// bobbed up to the doubled output rate
	m2, ff2, _ := newTestMuxer(t, c, Format720p50, astiav.NewRational(25, 1))
	require.NoError(t, m2.PushVideo(f))
	require.Equal(t, DisplayModeDeinterlaceBob, m2.DisplayMode())
	require.Len(t, ff2.fts, 2)
	require.True(t, ff2.fts[0].closed)
	require.Equal(t, "yadif=1:-1", ff2.last().Content())

	// A declared interlaced input matching the output stays simple, fields
	// are weaved at render time
	eh3 := astimux.NewEventHandler()
	ff3 := &muxerTestFiltererFactory{}
	m3, err := NewMuxer(MuxerOptions{
		InFieldMode:  FieldModeUpper,
		InFrameRate:  astiav.NewRational(25, 1),
		NewFilterer:  ff3.new,
		OutputFormat: FormatPAL,
	}, eh3, c)
	require.NoError(t, err)
	var resolved3 []EventMuxerDisplayMode
	eh3.AddForEventName(EventNameMuxerDisplayModeResolved, func(e astimux.Event) bool {
		resolved3 = append(resolved3, e.Payload.(EventMuxerDisplayMode))
		return false
	})
	f3 := astiav.AllocFrame()
	defer f3.Free()
	f3.SetHeight(576)
	require.NoError(t, m3.PushVideo(f3))
	require.Equal(t, DisplayModeSimple, m3.DisplayMode())
	require.Len(t, ff3.fts, 1)
	require.Equal(t, "", ff3.last().Content())
	require.Len(t, resolved3, 1)
	require.True(t, resolved3[0].Interlaced)
}
