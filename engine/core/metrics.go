package core

import "time"

const avgCount = 30

// Metrics keeps a rolling frame time average and a once-per-second FPS count.
type Metrics struct {
	counter     int
	times       [avgCount]float64
	avgMS       float64
	frames      int
	accumulated float64
	fps         float64
}

func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) Update(frameTime time.Duration) {
	frameMS := float64(frameTime) / float64(time.Millisecond)
	m.times[m.counter] = frameMS
	if m.counter == avgCount-1 {
		sum := 0.0
		for _, t := range m.times {
			sum += t
		}
		m.avgMS = sum / avgCount
	}
	m.counter = (m.counter + 1) % avgCount

	m.accumulated += frameMS
	if m.accumulated > 1000 {
		m.fps = float64(m.frames)
		m.accumulated -= 1000
		m.frames = 0
	}
	m.frames++
}

func (m *Metrics) FPS() float64 {
	return m.fps
}

func (m *Metrics) FrameTime() float64 {
	return m.avgMS
}

func (m *Metrics) Frame() (float64, float64) {
	return m.fps, m.avgMS
}
