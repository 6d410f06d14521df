package indicator

import "math"

// Window keeps the last size values and answers order statistics over them.
// Queries scan the buffer, so they cost O(size).
type Window struct {
	size  int
	buf   []float64
	idx   int
	count int
}

// NewWindow creates a rolling window of the given size.
func NewWindow(size int) *Window {
	if size < 1 {
		size = 1
	}
	return &Window{size: size, buf: make([]float64, size)}
}

// Push appends x, evicting the oldest value once the window is full.
func (w *Window) Push(x float64) {
	w.buf[w.idx] = x
	w.idx = (w.idx + 1) % w.size
	w.count++
}

// Full reports whether size values have been pushed.
func (w *Window) Full() bool { return w.count >= w.size }

func (w *Window) values() []float64 {
	if w.count < w.size {
		return w.buf[:w.count]
	}
	return w.buf
}

// Max returns the largest value in the window.
func (w *Window) Max() float64 {
	m := math.Inf(-1)
	for _, v := range w.values() {
		if v > m {
			m = v
		}
	}
	return m
}

// Min returns the smallest value in the window.
func (w *Window) Min() float64 {
	m := math.Inf(1)
	for _, v := range w.values() {
		if v < m {
			m = v
		}
	}
	return m
}

// Mean returns the arithmetic mean of the window.
func (w *Window) Mean() float64 {
	vals := w.values()
	if len(vals) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, v := range vals {
		sum += v
	}
	return sum / float64(len(vals))
}

// MeanAbsDev returns the mean absolute deviation around the window mean.
func (w *Window) MeanAbsDev() float64 {
	vals := w.values()
	mean := w.Mean()
	var sum float64
	for _, v := range vals {
		sum += math.Abs(v - mean)
	}
	return sum / float64(len(vals))
}

// StdDev returns the population standard deviation of the window.
func (w *Window) StdDev() float64 {
	vals := w.values()
	mean := w.Mean()
	var sum float64
	for _, v := range vals {
		d := v - mean
		sum += d * d
	}
	return math.Sqrt(sum / float64(len(vals)))
}
