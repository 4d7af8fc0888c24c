package astilibav

import (
	"errors"
	"fmt"
	"strings"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astimux"
)

// FrameFilterer filters video frames. Frames are pushed in and polled out,
// with a possible intrinsic delay in between.
type FrameFilterer interface {
	Close() error
	Content() string
	Delay() int
	DoubleRate() bool
	PollAll() []*astiav.Frame
	PollOne() (*astiav.Frame, bool)
	Push(f *astiav.Frame) error
}

// IsDeinterlacing indicates whether the filter content deinterlaces
func IsDeinterlacing(content string) bool {
	return strings.Contains(strings.ToUpper(content), "YADIF")
}

// IsDoubleRate indicates whether the filter content doubles the frame rate
func IsDoubleRate(content string) bool {
	c := strings.ToUpper(content)
	return strings.Contains(c, "YADIF=1") || strings.Contains(c, "YADIF=3")
}

// AppendFilter appends a filter directive to a filter content
func AppendFilter(content, filter string) string {
	if content == "" {
		return filter
	}
	return content + "," + filter
}

// NewFiltererFunc creates a filterer for the provided content
type NewFiltererFunc func(content string) (FrameFilterer, error)

// Filterer applies a libav filter graph to video frames. The graph is built
// lazily from the first pushed frame's parameters. An empty content behaves
// as a passthrough.
type Filterer struct {
	buffersinkCtx *astiav.BuffersinkFilterContext
	buffersrcCtx  *astiav.BuffersrcFilterContext
	cl            *astikit.Closer
	content       string
	delay         int
	eh            *astimux.EventHandler
	g             *astiav.FilterGraph
	p             *framePool
	q             []*astiav.Frame
	timeBase      astiav.Rational
}

// FiltererOptions represents filterer options
type FiltererOptions struct {
	Content  string
	TimeBase astiav.Rational
}

// NewFilterer creates a new filterer
func NewFilterer(o FiltererOptions, eh *astimux.EventHandler, c *astikit.Closer) (*Filterer, error) {
	return newFilterer(o, nil, eh, c)
}

func newFilterer(o FiltererOptions, p *framePool, eh *astimux.EventHandler, c *astikit.Closer) (f *Filterer, err error) {
	// Create filterer
	f = &Filterer{
		cl:       c.NewChild(),
		content:  strings.ToLower(o.Content),
		eh:       eh,
		p:        p,
		timeBase: o.TimeBase,
	}

	// Polled frames may outlive the filterer, they must be pooled on a closer
	// that outlives it too
	if f.p == nil {
		f.p = newFramePool(f.cl)
	}
	return
}

// Close closes the filterer
func (f *Filterer) Close() error {
	return f.cl.Close()
}

// Content returns the filterer's content
func (f *Filterer) Content() string {
	return f.content
}

// Delay returns the number of frames currently buffered inside the filterer
func (f *Filterer) Delay() int {
	return f.delay
}

// DoubleRate indicates whether the filterer doubles the frame rate
func (f *Filterer) DoubleRate() bool {
	return IsDoubleRate(f.content)
}

// Push pushes a frame into the filterer
func (f *Filterer) Push(i *astiav.Frame) (err error) {
	// Check input
	if i == nil {
		return errors.New("astilibav: frame is nil")
	}

	// Passthrough
	if f.content == "" {
		fm := f.p.get()
		if err = fm.Ref(i); err != nil {
			f.p.put(fm)
			err = fmt.Errorf("astilibav: refing frame failed: %w", err)
			return
		}
		f.q = append(f.q, fm)
		f.delay++
		return
	}

	// Create graph based on the first frame's parameters
	if f.g == nil {
		if err = f.createGraph(i); err != nil {
			err = fmt.Errorf("astilibav: creating graph failed: %w", err)
			return
		}
	}

	// Push frame in graph
	if err = f.buffersrcCtx.AddFrame(i, astiav.NewBuffersrcFlags(astiav.BuffersrcFlagKeepRef)); err != nil {
		err = fmt.Errorf("astilibav: adding frame to graph failed: %w", err)
		return
	}
	f.delay++
	return
}

// PollOne polls one filtered frame. Returned frames belong to the filterer's
// pool and must be returned to it once processed.
func (f *Filterer) PollOne() (*astiav.Frame, bool) {
	// Passthrough
	if f.content == "" {
		if len(f.q) == 0 {
			return nil, false
		}
		fm := f.q[0]
		f.q = f.q[1:]
		f.delay--
		return fm, true
	}

	// No graph yet
	if f.g == nil {
		return nil, false
	}

	// Pull filtered frame from graph
	fm := f.p.get()
	if err := f.buffersinkCtx.GetFrame(fm, astiav.NewBuffersinkFlags()); err != nil {
		if !errors.Is(err, astiav.ErrEof) && !errors.Is(err, astiav.ErrEagain) {
			f.eh.Emit(astimux.EventError(f, fmt.Errorf("astilibav: getting frame from graph failed: %w", err)))
		}
		f.p.put(fm)
		return nil, false
	}
	if f.delay > 0 {
		f.delay--
	}
	return fm, true
}

// PollAll polls all currently available filtered frames
func (f *Filterer) PollAll() (fs []*astiav.Frame) {
	for {
		fm, ok := f.PollOne()
		if !ok {
			return
		}
		fs = append(fs, fm)
	}
}

func (f *Filterer) createGraph(i *astiav.Frame) (err error) {
	// Create graph
	g := astiav.AllocFilterGraph()
	if g == nil {
		return errors.New("astilibav: graph is nil")
	}
	f.cl.Add(func() { g.Free() })

	// Find filters
	buffersrc := astiav.FindFilterByName("buffer")
	buffersink := astiav.FindFilterByName("buffersink")
	if buffersrc == nil || buffersink == nil {
		return errors.New("astilibav: buffersrc or buffersink is nil")
	}

	// Create buffersrc ctx
	var buffersrcCtx *astiav.BuffersrcFilterContext
	if buffersrcCtx, err = g.NewBuffersrcFilterContext(buffersrc, "in"); err != nil {
		return fmt.Errorf("astilibav: creating buffersrc ctx failed: %w", err)
	}

	// Create buffersink ctx
	var buffersinkCtx *astiav.BuffersinkFilterContext
	if buffersinkCtx, err = g.NewBuffersinkFilterContext(buffersink, "out"); err != nil {
		return fmt.Errorf("astilibav: creating buffersink ctx failed: %w", err)
	}

	// Set buffersrc parameters based on the incoming frame
	p := astiav.AllocBuffersrcFilterContextParameters()
	defer p.Free()
	p.SetHeight(i.Height())
	p.SetPixelFormat(i.PixelFormat())
	p.SetSampleAspectRatio(i.SampleAspectRatio())
	p.SetTimeBase(f.timeBase)
	p.SetWidth(i.Width())
	if err = buffersrcCtx.SetParameters(p); err != nil {
		return fmt.Errorf("astilibav: setting buffersrc parameters failed: %w", err)
	}
	if err = buffersrcCtx.Initialize(nil); err != nil {
		return fmt.Errorf("astilibav: initializing buffersrc ctx failed: %w", err)
	}

	// Create outputs
	outputs := astiav.AllocFilterInOut()
	defer outputs.Free()
	outputs.SetName("in")
	outputs.SetFilterContext(buffersrcCtx.FilterContext())
	outputs.SetPadIdx(0)
	outputs.SetNext(nil)

	// Create inputs
	inputs := astiav.AllocFilterInOut()
	defer inputs.Free()
	inputs.SetName("out")
	inputs.SetFilterContext(buffersinkCtx.FilterContext())
	inputs.SetPadIdx(0)
	inputs.SetNext(nil)

	// Parse content
	if err = g.Parse(fmt.Sprintf("[in]%s[out]", f.content), inputs, outputs); err != nil {
		return fmt.Errorf("astilibav: parsing content %s failed: %w", f.content, err)
	}

	// Configure graph
	if err = g.Configure(); err != nil {
		return fmt.Errorf("astilibav: configuring graph failed: %w", err)
	}

	// Store
	f.buffersinkCtx = buffersinkCtx
	f.buffersrcCtx = buffersrcCtx
	f.g = g
	return
}
