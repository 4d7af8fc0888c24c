package astilibav

import (
	"github.com/asticode/go-astiav"
)

// AudioCadence returns the repeating sequence of audio block sizes keeping
// audio exactly aligned with the provided video frame rate over time. Rates
// with an integer samples-per-frame ratio get a single-element cadence,
// 1001-style drop-frame rates get a full cycle (e.g. 1602 1601 1602 1601 1602
// for 29.97 at 48kHz)
func AudioCadence(frameRate astiav.Rational, sampleRate int) (vs []int) {
	// Check input
	num, den := int64(frameRate.Num()), int64(frameRate.Den())
	if num <= 0 || den <= 0 || sampleRate <= 0 {
		return
	}

	// Get cycle length: the smallest number of frames spanning a whole number
	// of samples
	n := num / gcd(int64(sampleRate)*den, num)

	// Distribute the cycle's samples over its frames
	var prev int64
	for i := int64(1); i <= n; i++ {
		cur := (2*i*int64(sampleRate)*den + num) / (2 * num)
		vs = append(vs, int(cur-prev))
		prev = cur
	}
	return
}

func gcd(a, b int64) int64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// cadence schedules the number of samples required per audio pop. The values
// never change, only the read position does.
type cadence struct {
	idx int
	vs  []int
}

// The cadence starts one step rotated for 1001 modes (1602 1602 1601 1602
// 1601), which fills the audio buffers most optimally.
func newCadence(vs []int) *cadence {
	c := &cadence{vs: append([]int{}, vs...)}
	if len(c.vs) > 1 {
		c.idx = len(c.vs) - 1
	}
	return c
}

func (c *cadence) current() int {
	return c.vs[c.idx]
}

func (c *cadence) advance() {
	c.idx = (c.idx + 1) % len(c.vs)
}
