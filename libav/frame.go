package astilibav

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
)

type framePool struct {
	cl                  *astikit.Closer
	fs                  []*astiav.Frame
	m                   *sync.Mutex
	statFramesAllocated uint64
}

func newFramePool(cl *astikit.Closer) *framePool {
	return &framePool{
		cl: cl,
		m:  &sync.Mutex{},
	}
}

func (p *framePool) get() (f *astiav.Frame) {
	p.m.Lock()
	defer p.m.Unlock()
	if len(p.fs) == 0 {
		f = astiav.AllocFrame()
		atomic.AddUint64(&p.statFramesAllocated, 1)
		p.cl.Add(func() { f.Free() })
		return
	}
	f = p.fs[len(p.fs)-1]
	p.fs = p.fs[:len(p.fs)-1]
	return
}

func (p *framePool) put(f *astiav.Frame) {
	if f == nil {
		return
	}
	p.m.Lock()
	defer p.m.Unlock()
	// Duplicated outputs share their frame, it must only be pooled once
	for _, v := range p.fs {
		if v == f {
			return
		}
	}
	f.Unref()
	p.fs = append(p.fs, f)
}

func (p *framePool) statOptions() []astikit.StatOptions {
	return []astikit.StatOptions{
		{
			Metadata: &astikit.StatMetadata{
				Description: "Number of allocated frames",
				Label:       "Allocated frames",
				Name:        StatNameAllocatedFrames,
				Unit:        "f",
			},
			Valuer: astikit.StatValuerFunc(func(_ time.Duration) interface{} { return atomic.LoadUint64(&p.statFramesAllocated) }),
		},
	}
}

// FrameFactory creates frames on behalf of the muxer
type FrameFactory interface {
	NewBlankFrame() (*astiav.Frame, error)
}

// A blank frame carries no pixel data, downstream consumers render it as
// empty content
type frameFactory struct {
	p *framePool
}

func newFrameFactory(p *framePool) *frameFactory {
	return &frameFactory{p: p}
}

func (ff *frameFactory) NewBlankFrame() (*astiav.Frame, error) {
	return ff.p.get(), nil
}
