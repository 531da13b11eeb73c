// Package rng provides the random source for the reference game engine
//
// Draws come from crypto/rand by default. NewWithReader accepts any byte
// stream so tests can replay a fixed sequence.
package rng

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"
	"time"
)

var ErrEmptyRange = errors.New("rng: empty range")

// Service draws uniform integers from an entropy stream.
// It is safe for concurrent use.
type Service struct {
	mu      sync.Mutex
	entropy io.Reader
	buf     [8]byte
	draws   uint64
}

// New creates a new RNG service using crypto/rand
func New() *Service {
	return NewWithReader(rand.Reader)
}

// NewWithReader creates an RNG service reading entropy from r
func NewWithReader(r io.Reader) *Service {
	return &Service{entropy: r}
}

// Intn returns a uniform int in [0, n).
// Words above the largest multiple of n are redrawn so every value is equally likely.
func (s *Service) Intn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("%w: n = %d", ErrEmptyRange, n)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	bound := uint64(n)
	limit := math.MaxUint64 - math.MaxUint64%bound
	for {
		if _, err := io.ReadFull(s.entropy, s.buf[:]); err != nil {
			return 0, fmt.Errorf("rng: read entropy: %w", err)
		}
		if v := binary.BigEndian.Uint64(s.buf[:]); v < limit {
			s.draws++
			return int(v % bound), nil
		}
	}
}

// Between returns a uniform int in [min, max]
func (s *Service) Between(min, max int) (int, error) {
	if min > max {
		return 0, fmt.Errorf("%w: [%d, %d]", ErrEmptyRange, min, max)
	}
	n, err := s.Intn(max - min + 1)
	if err != nil {
		return 0, err
	}
	return min + n, nil
}

// Choose returns a uniformly chosen element of items
func Choose[T any](s *Service, items []T) (T, error) {
	var zero T
	i, err := s.Intn(len(items))
	if err != nil {
		return zero, err
	}
	return items[i], nil
}

// Draws returns the number of values produced so far
func (s *Service) Draws() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draws
}

const (
	healthSamples = 2000
	healthBins    = 20
)

// Health is the result of a uniformity self-test
type Health struct {
	Healthy   bool      `json:"healthy"`
	CheckedAt time.Time `json:"checkedAt"`
	Draws     uint64    `json:"draws"`
	ChiSquare float64   `json:"chiSquare"`
	Critical  float64   `json:"critical"`
	Error     string    `json:"error,omitempty"`
}

// HealthCheck draws a sample batch and runs a chi-square uniformity test
func (s *Service) HealthCheck() (*Health, error) {
	h := &Health{CheckedAt: time.Now().UTC()}

	counts := make([]int, healthBins)
	for i := 0; i < healthSamples; i++ {
		n, err := s.Intn(healthBins)
		if err != nil {
			h.Error = err.Error()
			h.Draws = s.Draws()
			return h, err
		}
		counts[n]++
	}

	h.ChiSquare = chiSquare(counts, healthSamples)
	h.Critical = chiSquareCritical(healthBins - 1)
	h.Healthy = h.ChiSquare < h.Critical
	h.Draws = s.Draws()
	return h, nil
}

// chiSquare is Pearson's statistic for counts against a uniform expectation
func chiSquare(counts []int, total int) float64 {
	expected := float64(total) / float64(len(counts))
	var stat float64
	for _, c := range counts {
		d := float64(c) - expected
		stat += d * d / expected
	}
	return stat
}

// chiSquareCritical approximates the 99th percentile of chi-square with df
// degrees of freedom (Wilson-Hilferty)
func chiSquareCritical(df int) float64 {
	const z99 = 2.326
	k := float64(df)
	t := 1 - 2/(9*k) + z99*math.Sqrt(2/(9*k))
	return k * t * t * t
}
