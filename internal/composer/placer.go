package composer

import (
	"math/rand/v2"
	"sync"
)

// Canvas is the area captions are placed on, in picture pixels.
type Canvas struct {
	Width  float64
	Height float64
}

// DefaultCanvas matches the preview size of the web client.
var DefaultCanvas = Canvas{Width: 400, Height: 225}

// Placer picks the position of a new caption.
type Placer interface {
	Place(c Canvas) (x, y float64)
}

// RandomPlacer draws x in [0, Width) and y in [0, Height) uniformly.
type RandomPlacer struct {
	mu  sync.Mutex
	rnd *rand.Rand
}

// NewRandomPlacer returns a placer seeded from src, or from the runtime source when src is nil.
func NewRandomPlacer(src rand.Source) *RandomPlacer {
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &RandomPlacer{rnd: rand.New(src)}
}

// Place implements Placer.
func (p *RandomPlacer) Place(c Canvas) (float64, float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rnd.Float64() * c.Width, p.rnd.Float64() * c.Height
}

// FixedPlacer always returns the same position.
type FixedPlacer struct {
	X, Y float64
}

// Place implements Placer.
func (p FixedPlacer) Place(Canvas) (float64, float64) {
	return p.X, p.Y
}
