package astilibav

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astimux"
)

var countMuxer uint64

// Per-generation buffering bound. Exceeding it means the input is paced
// wrongly, most likely due to incorrect frame-rate metadata.
const muxerMaxGenerationSize = 32

// Overflow errors are fatal to the stream, the caller must abort it
var (
	ErrAudioOverflow = errors.New("astilibav: audio stream overflow, check input frame-rate metadata")
	ErrVideoOverflow = errors.New("astilibav: video stream overflow, check input frame-rate metadata")
)

// MuxedFrame is a fully assembled output frame: video content plus the audio
// samples scheduled with it
type MuxedFrame struct {
	// Field order to weave with when SecondField is set
	FieldMode FieldMode
	Samples   []int32
	// Second source frame when two decoded frames are combined into one
	// interlaced output
	SecondField *astiav.Frame
	Video       *astiav.Frame
}

// Muxer re-times independently paced video frames and audio sample blocks
// into a single ordered sequence of muxed frames obeying the output format.
// It must be used from a single goroutine.
type Muxer struct {
	as            *generationQueue[int32]
	cadence       *cadence
	cl            *astikit.Closer
	displayMode   DisplayMode
	eh            *astimux.EventHandler
	factory       FrameFactory
	filterContent string
	filterer      FrameFilterer
	inFieldMode   FieldMode
	inFrameRate   astiav.Rational
	name          string
	newFilterer   NewFiltererFunc
	outputFormat  Format
	outputs       []*MuxedFrame
	p             *framePool
	// Frames still referenced by several pending outputs, with their
	// remaining reference count
	shared map[*astiav.Frame]int
	vs     *generationQueue[*astiav.Frame]

	statFramesIn  uint64
	statFramesOut uint64
}

// MuxerOptions represents muxer options
type MuxerOptions struct {
	// Initial filter content applied to incoming video frames
	FilterContent string
	// Defaults to a factory producing blank frames
	FrameFactory FrameFactory
	// Field order of the source, as reported by its container or codec
	// metadata. Defaults to progressive.
	InFieldMode FieldMode
	InFrameRate astiav.Rational
	InTimeBase  astiav.Rational
	Name         string
	// Defaults to a libav graph filterer
	NewFilterer  NewFiltererFunc
	OutputFormat Format
}

// NewMuxer creates a new muxer
func NewMuxer(o MuxerOptions, eh *astimux.EventHandler, c *astikit.Closer) (m *Muxer, err error) {
	// Get name
	count := atomic.AddUint64(&countMuxer, uint64(1))
	name := o.Name
	if name == "" {
		name = fmt.Sprintf("muxer_%d", count)
	}

	// Check output format
	if len(o.OutputFormat.AudioCadence) == 0 {
		err = fmt.Errorf("astilibav: output format %s has no audio cadence", o.OutputFormat.Name)
		return
	}
	if o.OutputFormat.FrameRate.Float64() <= 0 {
		err = fmt.Errorf("astilibav: output format %s has no frame rate", o.OutputFormat.Name)
		return
	}

	// Create muxer
	m = &Muxer{
		as:            newGenerationQueue[int32](),
		cadence:       newCadence(o.OutputFormat.AudioCadence),
		cl:            c.NewChild(),
		displayMode:   DisplayModeInvalid,
		eh:            eh,
		factory:       o.FrameFactory,
		filterContent: o.FilterContent,
		inFieldMode:   o.InFieldMode,
		inFrameRate:   o.InFrameRate,
		name:          name,
		newFilterer:   o.NewFilterer,
		outputFormat:  o.OutputFormat,
		shared:        make(map[*astiav.Frame]int),
		vs:            newGenerationQueue[*astiav.Frame](),
	}
	m.p = newFramePool(m.cl)

	// Default collaborators
	if m.factory == nil {
		m.factory = newFrameFactory(m.p)
	}
	if m.newFilterer == nil {
		// Filterers share the muxer's frame pool so that frames they return
		// survive their replacement and get reused instead of reallocated
		m.newFilterer = func(content string) (FrameFilterer, error) {
			return newFilterer(FiltererOptions{
				Content:  content,
				TimeBase: o.InTimeBase,
			}, m.p, eh, m.cl)
		}
	}

	// Create initial filterer
	if m.filterer, err = m.newFilterer(o.FilterContent); err != nil {
		err = fmt.Errorf("astilibav: creating filterer with content %s failed: %w", o.FilterContent, err)
		return
	}
	return
}

// Close closes the muxer
func (m *Muxer) Close() error {
	return m.cl.Close()
}

// String implements the fmt.Stringer interface
func (m *Muxer) String() string {
	return m.name
}

// DisplayMode returns the resolved display mode. It stays invalid until the
// first real video frame has been pushed.
func (m *Muxer) DisplayMode() DisplayMode {
	return m.displayMode
}

// PushVideo pushes a decoded video frame. The first real frame resolves the
// display mode and may reconfigure the filterer. The frame stays owned by
// the caller.
func (m *Muxer) PushVideo(f *astiav.Frame) (err error) {
	// Check input
	if f == nil {
		return errors.New("astilibav: frame is nil")
	}

	// Increment incoming frames
	atomic.AddUint64(&m.statFramesIn, 1)

	// Resolve display mode once, based on the first real frame
	if m.displayMode == DisplayModeInvalid {
		if err = m.resolveDisplayMode(f); err != nil {
			err = fmt.Errorf("astilibav: resolving display mode failed: %w", err)
			return
		}
	}

	// Filter
	if err = m.filterer.Push(f); err != nil {
		err = fmt.Errorf("astilibav: pushing frame to filterer failed: %w", err)
		return
	}
	m.vs.push(m.filterer.PollAll()...)

	// Check overflow
	if m.vs.backLen() > muxerMaxGenerationSize {
		return ErrVideoOverflow
	}
	return
}

// PushVideoPlaceholder pushes a blank filler frame. It is the policy used
// when no frame-rate/field detection is desired or possible, therefore it
// also fixes the display mode to simple if detection has not run yet.
func (m *Muxer) PushVideoPlaceholder() (err error) {
	// Create blank frame
	var f *astiav.Frame
	if f, err = m.factory.NewBlankFrame(); err != nil {
		err = fmt.Errorf("astilibav: creating blank frame failed: %w", err)
		return
	}

	// Push
	m.vs.push(f)
	if m.displayMode == DisplayModeInvalid {
		m.displayMode = DisplayModeSimple
	}

	// Check overflow
	if m.vs.backLen() > muxerMaxGenerationSize {
		return ErrVideoOverflow
	}
	return
}

// FlushVideo ends the current video generation and starts a new one
func (m *Muxer) FlushVideo() {
	m.vs.flush()
}

// PushAudio pushes decoded audio samples
func (m *Muxer) PushAudio(samples []int32) (err error) {
	// Push
	m.as.push(samples...)

	// Check overflow
	if m.as.backLen() > muxerMaxGenerationSize*m.cadence.current() {
		return ErrAudioOverflow
	}
	return
}

// PushAudioSilence pushes one cadence-sized block of silence
func (m *Muxer) PushAudioSilence() error {
	return m.PushAudio(make([]int32, m.cadence.current()))
}

// FlushAudio ends the current audio generation and starts a new one
func (m *Muxer) FlushAudio() {
	m.as.flush()
}

// VideoReady indicates whether enough video is buffered for an assembly pass
func (m *Muxer) VideoReady() bool {
	return m.vs.count() > 1 || (m.vs.count() >= m.as.count() && m.videoReadyFront())
}

// AudioReady indicates whether enough audio is buffered for an assembly pass
func (m *Muxer) AudioReady() bool {
	return m.as.count() > 1 || (m.as.count() >= m.vs.count() && m.audioReadyFront())
}

func (m *Muxer) videoReadyFront() bool {
	switch m.displayMode {
	case DisplayModeDeinterlaceBobReinterlace, DisplayModeInterlace, DisplayModeHalf:
		return m.vs.frontLen() >= 2
	default:
		return m.vs.frontLen() >= 1
	}
}

func (m *Muxer) audioReadyFront() bool {
	switch m.displayMode {
	case DisplayModeDuplicate:
		return m.as.frontLen()/2 >= m.cadence.current()
	default:
		return m.as.frontLen() >= m.cadence.current()
	}
}

// TryPop assembles and returns the next muxed frame if enough matched video
// and audio is buffered. It returns false when no output is available yet.
func (m *Muxer) TryPop() (f *MuxedFrame, ok bool, err error) {
	for {
		// Pop buffered output first
		if len(m.outputs) > 0 {
			f = m.outputs[0]
			m.outputs = m.outputs[1:]
			ok = true
			atomic.AddUint64(&m.statFramesOut, 1)
			return
		}

		// Both streams have moved past a flush boundary but the front
		// generations can't produce a full output anymore: truncate them in
		// lockstep
		if m.vs.count() > 1 && m.as.count() > 1 && (!m.videoReadyFront() || !m.audioReadyFront()) {
			if vn, an := m.vs.frontLen(), m.as.frontLen(); vn > 0 || an > 0 {
				m.eh.Emit(astimux.Event{
					Name:    EventNameMuxerTruncated,
					Payload: EventMuxerTruncated{Frames: vn, Samples: an},
					Target:  m,
				})
			}
			for _, fm := range m.vs.retire() {
				m.p.put(fm)
			}
			m.as.retire()
		}

		// Not enough data
		if !m.videoReadyFront() || !m.audioReadyFront() || m.displayMode == DisplayModeInvalid {
			return nil, false, nil
		}

		// Pop one matched unit
		f1 := m.popVideo()
		samples := m.popAudio()

		switch m.displayMode {
		case DisplayModeSimple, DisplayModeDeinterlace, DisplayModeDeinterlaceBob:
			m.outputs = append(m.outputs, &MuxedFrame{Samples: samples, Video: f1})
		case DisplayModeInterlace, DisplayModeDeinterlaceBobReinterlace:
			m.outputs = append(m.outputs, &MuxedFrame{
				FieldMode:   m.outputFormat.FieldMode,
				Samples:     samples,
				SecondField: m.popVideo(),
				Video:       f1,
			})
		case DisplayModeDuplicate:
			// Both outputs reference f1, it must only be recycled once both
			// have been
			m.shared[f1] += 2
			m.outputs = append(m.outputs,
				&MuxedFrame{Samples: samples, Video: f1},
				&MuxedFrame{Samples: m.popAudio(), Video: f1},
			)
		case DisplayModeHalf:
			m.p.put(m.popVideo())
			m.outputs = append(m.outputs, &MuxedFrame{Samples: samples, Video: f1})
		default:
			err = fmt.Errorf("astilibav: display mode %s is not handled by muxer", m.displayMode)
			return
		}
	}
}

// Recycle gives a consumed muxed frame's video content back to the muxer so
// its frames can be reused
func (m *Muxer) Recycle(f *MuxedFrame) {
	if f == nil {
		return
	}
	m.recycleFrame(f.Video)
	m.recycleFrame(f.SecondField)
}

func (m *Muxer) recycleFrame(f *astiav.Frame) {
	if f == nil {
		return
	}
	if n, ok := m.shared[f]; ok {
		if n > 1 {
			m.shared[f] = n - 1
			return
		}
		delete(m.shared, f)
	}
	m.p.put(f)
}

func (m *Muxer) popVideo() *astiav.Frame {
	fs := m.vs.popFront(1)
	if len(fs) == 0 {
		return nil
	}
	return fs[0]
}

func (m *Muxer) popAudio() []int32 {
	samples := m.as.popFront(m.cadence.current())
	m.cadence.advance()
	return samples
}

// NbFrames predicts the number of muxed frames the provided number of input
// frames yields under the active display mode and filter rate transformation
func (m *Muxer) NbFrames(nbFrames uint32) uint32 {
	nb := uint64(nbFrames)

	// Take into account transformations in the filterer
	if m.filterer.DoubleRate() {
		nb *= 2
	}

	// Take into account transformations at assembly time
	switch m.displayMode {
	case DisplayModeDeinterlaceBobReinterlace, DisplayModeInterlace, DisplayModeHalf:
		nb /= 2
	case DisplayModeDuplicate:
		nb *= 2
	}
	return uint32(nb)
}

func (m *Muxer) resolveDisplayMode(f *astiav.Frame) (err error) {
	content := m.filterContent

	// SD streams reporting progressive are usually mis-tagged interlaced
	// content, fix it
	mode := m.inFieldMode
	fps := m.inFrameRate.Float64()
	if mode == FieldModeProgressive && f.Height() < 720 && fps < 50.0 {
		mode = FieldModeUpper
	}

	// Take into account transformations already requested upstream
	if IsDeinterlacing(m.filterContent) {
		mode = FieldModeProgressive
	}
	if IsDoubleRate(m.filterContent) {
		fps *= 2
	}

	// Classify
	m.displayMode = displayModeFor(mode, fps, m.outputFormat.FieldMode, m.outputFormat.FrameRate.Float64())

	// Content that will be scaled must be deinterlaced before the scale and
	// reinterlaced after it, except for 480-line content in a 486-line NTSC
	// DV target
	if (f.Height() != 480 || m.outputFormat.Height != 486) &&
		m.displayMode == DisplayModeSimple && mode != FieldModeProgressive &&
		m.outputFormat.FieldMode != FieldModeProgressive && f.Height() != m.outputFormat.Height {
		m.displayMode = DisplayModeDeinterlaceBobReinterlace
	}

	// Append the deinterlacing directive the resolved mode requires
	switch m.displayMode {
	case DisplayModeDeinterlace:
		content = AppendFilter(content, "yadif=0:-1")
	case DisplayModeDeinterlaceBob, DisplayModeDeinterlaceBobReinterlace:
		content = AppendFilter(content, "yadif=1:-1")
	}

	// Unresolved mode falls back to simple
	if m.displayMode == DisplayModeInvalid {
		m.eh.Emit(astimux.Event{Name: EventNameMuxerDisplayModeFailed, Target: m})
		m.displayMode = DisplayModeSimple
	}

	// Replace the filterer when its content changed, draining its buffered
	// frames first
	if !strings.EqualFold(m.filterer.Content(), content) {
		for i, d := 0, m.filterer.Delay(); i < d; i++ {
			if err = m.filterer.Push(f); err != nil {
				err = fmt.Errorf("astilibav: pushing frame to drained filterer failed: %w", err)
				return
			}
			if fm, ok := m.filterer.PollOne(); ok {
				m.vs.push(fm)
			}
		}
		var ft FrameFilterer
		if ft, err = m.newFilterer(content); err != nil {
			err = fmt.Errorf("astilibav: creating filterer with content %s failed: %w", content, err)
			return
		}
		if errC := m.filterer.Close(); errC != nil {
			m.eh.Emit(astimux.EventError(m, fmt.Errorf("astilibav: closing filterer failed: %w", errC)))
		}
		m.filterer = ft
	}

	// Emit resolved event
	m.eh.Emit(astimux.Event{
		Name: EventNameMuxerDisplayModeResolved,
		Payload: EventMuxerDisplayMode{
			DisplayMode: m.displayMode,
			FPS:         m.inFrameRate.Float64(),
			Height:      f.Height(),
			Interlaced:  m.inFieldMode != FieldModeProgressive,
			Width:       f.Width(),
		},
		Target: m,
	})
	return
}

// StatOptions returns the muxer's stat options
func (m *Muxer) StatOptions() []astikit.StatOptions {
	ss := m.p.statOptions()
	ss = append(ss,
		astikit.StatOptions{
			Metadata: &astikit.StatMetadata{
				Description: "Number of frames coming in per second",
				Label:       "Incoming rate",
				Name:        StatNameIncomingRate,
				Unit:        "fps",
			},
			Valuer: astikit.NewAtomicUint64RateStat(&m.statFramesIn),
		},
		astikit.StatOptions{
			Metadata: &astikit.StatMetadata{
				Description: "Number of muxed frames going out per second",
				Label:       "Outgoing rate",
				Name:        StatNameOutgoingRate,
				Unit:        "fps",
			},
			Valuer: astikit.NewAtomicUint64RateStat(&m.statFramesOut),
		},
	)
	return ss
}
