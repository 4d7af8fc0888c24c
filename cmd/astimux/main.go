package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/asticode/go-astiav"
	"github.com/asticode/go-astikit"
	"github.com/asticode/go-astimux"
	astilibav "github.com/asticode/go-astimux/libav"
)

// Flags
var (
	configPath    = flag.String("c", "", "the config path")
	fieldMode     = flag.String("field-mode", "progressive", "the input field mode (progressive|upper|lower)")
	filterContent = flag.String("vf", "", "the filter content applied to incoming frames")
	formatName    = flag.String("f", "1080i50", "the output format name")
	frameRate     = flag.String("frame-rate", "25/1", "the input frame rate")
)

func main() {
	// Parse flags
	flag.Parse()

	// Create logger
	l := log.New(log.Writer(), log.Prefix(), log.Flags())

	// Create configuration
	c, err := astimux.NewConfiguration(*configPath, astimux.Configuration{StatsPeriod: 5 * time.Second})
	if err != nil {
		l.Fatal(fmt.Errorf("main: creating configuration failed: %w", err))
	}

	// Get output format
	f, ok := astilibav.FormatByName(*formatName)
	if !ok {
		l.Fatal(fmt.Errorf("main: unknown format %s", *formatName))
	}

	// Parse frame rate
	fr, err := parseFrameRate(*frameRate)
	if err != nil {
		l.Fatal(fmt.Errorf("main: parsing frame rate failed: %w", err))
	}

	// Parse field mode
	fm, err := parseFieldMode(*fieldMode)
	if err != nil {
		l.Fatal(fmt.Errorf("main: parsing field mode failed: %w", err))
	}

	// Create event handler
	eh := astimux.NewEventHandler()

	// Log event handler. It must be wired before anything emits so that no
	// event gets dropped.
	defer eh.Log(astimux.EventHandlerLogOptions{
		Adapters: []astimux.EventHandlerLogAdapter{
			astimux.WithMessageMerging(10 * time.Second),
			astilibav.WithLog(astilibav.LoggerEventHandlerAdapterOptions{LogLevel: astiav.LogLevelWarning}),
		},
		Logger: l,
	}).Start(context.Background()).Close()

	// Create worker
	w := astimux.NewWorker(eh)

	// Create closer
	cl := astikit.NewCloser()
	defer cl.Close()

	// Create muxer
	m, err := astilibav.NewMuxer(astilibav.MuxerOptions{
		FilterContent: *filterContent,
		InFieldMode:   fm,
		InFrameRate:   fr,
		InTimeBase:    astiav.NewRational(fr.Den(), fr.Num()),
		OutputFormat:  f,
	}, eh, cl)
	if err != nil {
		l.Fatal(fmt.Errorf("main: creating muxer failed: %w", err))
	}

	// Create stater
	s := astimux.NewStater(c.StatsPeriod, eh)
	s.AddStats(m, m.StatOptions()...)
	s.AddStats(nil, astimux.PSUtilStatOptions())

	// Create server
	if c.Server.Addr != "" {
		srv := astimux.NewServer(astimux.ServerOptions{Logger: l})
		srv.EventHandlerAdapter(eh)
		go func() {
			if err := http.ListenAndServe(c.Server.Addr, srv.Handler()); err != nil {
				eh.Emit(astimux.EventError(nil, fmt.Errorf("main: serving on %s failed: %w", c.Server.Addr, err)))
			}
		}()
	}

	// Handle signals
	w.HandleSignals()

	// Start worker
	w.Start(context.Background(), func(ctx context.Context) {
		// Feed the muxer at the input frame rate, drain its outputs as they
		// come
		t := time.NewTicker(time.Duration(float64(time.Second) / fr.Float64()))
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				if err := m.PushVideoPlaceholder(); err != nil {
					eh.Emit(astimux.EventError(m, err))
					return
				}
				if err := m.PushAudioSilence(); err != nil {
					eh.Emit(astimux.EventError(m, err))
					return
				}
				for {
					mf, ok, err := m.TryPop()
					if err != nil {
						eh.Emit(astimux.EventError(m, err))
						return
					} else if !ok {
						break
					}
					m.Recycle(mf)
				}
			}
		}
	})

	// Start stater
	go s.Start(w.Context())
	defer s.Stop()

	// Wait
	w.Wait()
}

func parseFrameRate(s string) (r astiav.Rational, err error) {
	num, den := s, "1"
	if idx := strings.Index(s, "/"); idx >= 0 {
		num, den = s[:idx], s[idx+1:]
	}
	var n, d int
	if n, err = strconv.Atoi(num); err != nil {
		err = fmt.Errorf("main: parsing %s failed: %w", num, err)
		return
	}
	if d, err = strconv.Atoi(den); err != nil {
		err = fmt.Errorf("main: parsing %s failed: %w", den, err)
		return
	}
	if n <= 0 || d <= 0 {
		err = fmt.Errorf("main: invalid frame rate %s", s)
		return
	}
	r = astiav.NewRational(n, d)
	return
}

func parseFieldMode(s string) (astilibav.FieldMode, error) {
	switch strings.ToLower(s) {
	case "progressive":
		return astilibav.FieldModeProgressive, nil
	case "upper":
		return astilibav.FieldModeUpper, nil
	case "lower":
		return astilibav.FieldModeLower, nil
	default:
		return astilibav.FieldModeProgressive, fmt.Errorf("main: invalid field mode %s", s)
	}
}
