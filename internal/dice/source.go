package dice

import (
	cryptorand "crypto/rand"
	"encoding/binary"
	"io"
	"math/rand/v2"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// RandomSource is the randomness provider for picks.
//
// Implementations MUST be safe for concurrent use.
type RandomSource interface {
	// Float64 returns a uniformly distributed value in [0, 1).
	Float64() float64
}

// DegradationReporter is implemented by sources that can fall back to a
// weaker generator.
type DegradationReporter interface {
	// Degraded reports whether the most recent draw fell back.
	Degraded() bool
}

// drawer is implemented by sources that can report, per draw, whether the
// value came from the fallback generator.
type drawer interface {
	Draw() (float64, bool)
}

// CryptoSource implements RandomSource using crypto/rand. When the
// cryptographic reader fails, the draw falls back to math/rand/v2's
// ChaCha8-seeded global generator and is flagged as degraded. A later
// successful read clears the flag.
type CryptoSource struct {
	reader    io.Reader
	logger    *zap.Logger
	failing   atomic.Bool
	fallbacks atomic.Uint64
}

// NewCryptoSource returns a RandomSource backed by crypto/rand.
//
// Precondition: logger must be non-nil.
func NewCryptoSource(logger *zap.Logger) *CryptoSource {
	return NewCryptoSourceFromReader(cryptorand.Reader, logger)
}

// NewCryptoSourceFromReader returns a CryptoSource reading entropy from r.
//
// Precondition: r and logger must be non-nil.
func NewCryptoSourceFromReader(r io.Reader, logger *zap.Logger) *CryptoSource {
	return &CryptoSource{reader: r, logger: logger}
}

// Float64 returns a 53-bit uniform fraction in [0, 1).
//
// Postcondition: 0 <= result < 1.
func (c *CryptoSource) Float64() float64 {
	f, _ := c.Draw()
	return f
}

// Draw returns a uniform fraction in [0, 1) and whether it came from the
// fallback generator.
func (c *CryptoSource) Draw() (float64, bool) {
	var buf [8]byte
	if _, err := io.ReadFull(c.reader, buf[:]); err != nil {
		c.fallbacks.Add(1)
		if c.failing.CompareAndSwap(false, true) {
			c.logger.Warn("crypto random source failed, falling back to math/rand",
				zap.Error(err),
			)
		} else {
			c.logger.Debug("crypto random source still failing", zap.Error(err))
		}
		return rand.Float64(), true
	}
	if c.failing.CompareAndSwap(true, false) {
		c.logger.Info("crypto random source recovered",
			zap.Uint64("fallbacks", c.fallbacks.Load()),
		)
	}
	u := binary.BigEndian.Uint64(buf[:]) >> 11
	return float64(u) / (1 << 53), false
}

// Degraded reports whether the most recent draw fell back to math/rand.
func (c *CryptoSource) Degraded() bool {
	return c.failing.Load()
}

// Fallbacks returns how many draws have used the fallback generator.
func (c *CryptoSource) Fallbacks() uint64 {
	return c.fallbacks.Load()
}

// SeededSource is a deterministic RandomSource for tests and simulations.
type SeededSource struct {
	mu sync.Mutex
	r  *rand.Rand
}

// NewSeededSource returns a PCG-backed source. Equal seeds yield equal sequences.
func NewSeededSource(seed uint64) *SeededSource {
	return &SeededSource{r: rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))}
}

// Float64 returns the next value of the seeded sequence in [0, 1).
func (s *SeededSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.r.Float64()
}

// SequenceSource replays a fixed list of fractions, cycling when exhausted.
// It is intended for tests that need exact indices.
type SequenceSource struct {
	mu     sync.Mutex
	values []float64
	next   int
}

// NewSequenceSource returns a source that yields values in order.
//
// Precondition: len(values) > 0 and every value is in [0, 1).
func NewSequenceSource(values ...float64) *SequenceSource {
	if len(values) == 0 {
		panic("dice: NewSequenceSource requires at least one value")
	}
	return &SequenceSource{values: values}
}

// Float64 returns the next value in the sequence.
func (s *SequenceSource) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := s.values[s.next%len(s.values)]
	s.next++
	return v
}
