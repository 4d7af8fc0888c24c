package astilibav

import (
	"testing"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astimux"
	"github.com/stretchr/testify/require"
)

func TestFilterContentHelpers(t *testing.T) {
	require.False(t, IsDeinterlacing(""))
	require.False(t, IsDeinterlacing("scale=1920:1080"))
	require.True(t, IsDeinterlacing("yadif=0:-1"))
	require.True(t, IsDeinterlacing("scale=1920:1080,YADIF=1:-1"))

	require.False(t, IsDoubleRate(""))
	require.False(t, IsDoubleRate("yadif=0:-1"))
	require.True(t, IsDoubleRate("yadif=1:-1"))
	require.True(t, IsDoubleRate("scale=1920:1080,yadif=3:-1"))

	require.Equal(t, "yadif=0:-1", AppendFilter("", "yadif=0:-1"))
	require.Equal(t, "scale=1920:1080,yadif=1:-1", AppendFilter("scale=1920:1080", "yadif=1:-1"))
}

func TestFiltererSharedPool(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	eh := astimux.NewEventHandler()
	p := newFramePool(c)

	ft, err := newFilterer(FiltererOptions{}, p, eh, c)
	require.NoError(t, err)
	require.Same(t, p, ft.p)

	// Push a refable frame through the passthrough
	i := astiav.AllocFrame()
	defer i.Free()
	i.SetHeight(2)
	i.SetPixelFormat(astiav.PixelFormatYuv420P)
	i.SetWidth(2)
	require.NoError(t, i.AllocBuffer(1))
	require.NoError(t, ft.Push(i))
	f, ok := ft.PollOne()
	require.True(t, ok)

	// Polled frames survive the filterer and go back to the shared pool
	require.NoError(t, ft.Close())
	p.put(f)
	require.Same(t, f, p.get())
}

func TestMuxerDefaultFiltererSharesPool(t *testing.T) {
	c := astikit.NewCloser()
	defer c.Close()
	eh := astimux.NewEventHandler()

	m, err := NewMuxer(MuxerOptions{
		InFrameRate:  astiav.NewRational(25, 1),
		OutputFormat: FormatPAL,
	}, eh, c)
	require.NoError(t, err)
	ft, ok := m.filterer.(*Filterer)
	require.True(t, ok)
	require.Same(t, m.p, ft.p)
}
