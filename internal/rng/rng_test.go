package rng

import (
	"bytes"
	"errors"
	"io"
	"testing"
)

func TestIntn(t *testing.T) {
	s := New()

	t.Run("WithinRange", func(t *testing.T) {
		for _, n := range []int{1, 2, 10, 100, 1000} {
			for i := 0; i < 500; i++ {
				v, err := s.Intn(n)
				if err != nil {
					t.Fatalf("Failed to draw: %v", err)
				}
				if v < 0 || v >= n {
					t.Errorf("Drew %d, out of range [0, %d)", v, n)
				}
			}
		}
	})

	t.Run("RejectsEmptyRange", func(t *testing.T) {
		for _, n := range []int{0, -1} {
			if _, err := s.Intn(n); !errors.Is(err, ErrEmptyRange) {
				t.Errorf("Expected ErrEmptyRange for n %d, got %v", n, err)
			}
		}
	})
}

func TestBetween(t *testing.T) {
	s := New()

	seen := make(map[int]bool)
	for i := 0; i < 2000; i++ {
		v, err := s.Between(3, 9)
		if err != nil {
			t.Fatalf("Failed to draw: %v", err)
		}
		if v < 3 || v > 9 {
			t.Fatalf("Drew %d, out of range [3, 9]", v)
		}
		seen[v] = true
	}
	if len(seen) != 7 {
		t.Errorf("Expected all 7 values to appear, got %d", len(seen))
	}

	if _, err := s.Between(5, 4); !errors.Is(err, ErrEmptyRange) {
		t.Errorf("Expected ErrEmptyRange when min > max, got %v", err)
	}
}

func TestChoose(t *testing.T) {
	s := NewWithReader(bytes.NewReader(make([]byte, 8)))

	word, err := Choose(s, []string{"token", "waste", "loop"})
	if err != nil {
		t.Fatalf("Failed to choose: %v", err)
	}
	if word != "token" {
		t.Errorf("Expected zero entropy to pick the first item, got %s", word)
	}

	if _, err := Choose(s, []string{}); !errors.Is(err, ErrEmptyRange) {
		t.Errorf("Expected ErrEmptyRange for no items, got %v", err)
	}
}

func TestNewWithReader(t *testing.T) {
	s := NewWithReader(bytes.NewReader(make([]byte, 64)))

	v, err := s.Between(2, 8)
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if v != 2 {
		t.Errorf("Expected zero entropy to yield the minimum, got %d", v)
	}
	if s.Draws() != 1 {
		t.Errorf("Expected 1 draw, got %d", s.Draws())
	}
}

func TestExhaustedReader(t *testing.T) {
	s := NewWithReader(bytes.NewReader([]byte{1, 2, 3}))

	_, err := s.Intn(10)
	if err == nil {
		t.Fatal("Expected error from a short entropy source")
	}
	if !errors.Is(err, io.ErrUnexpectedEOF) {
		t.Errorf("Expected wrapped io.ErrUnexpectedEOF, got %v", err)
	}
}

func TestHealthCheck(t *testing.T) {
	t.Run("CryptoSource", func(t *testing.T) {
		h, err := New().HealthCheck()
		if err != nil {
			t.Fatalf("Health check failed: %v", err)
		}
		if h.Draws != healthSamples {
			t.Errorf("Expected %d draws, got %d", healthSamples, h.Draws)
		}
		if h.ChiSquare <= 0 || h.Critical <= 0 {
			t.Errorf("Expected positive statistics, got %+v", h)
		}
	})

	t.Run("ConstantSource", func(t *testing.T) {
		h, err := NewWithReader(bytes.NewReader(make([]byte, 8*healthSamples))).HealthCheck()
		if err != nil {
			t.Fatalf("Health check failed: %v", err)
		}
		if h.Healthy {
			t.Errorf("Expected constant entropy to fail, got chi-square %f", h.ChiSquare)
		}
	})

	t.Run("ExhaustedSource", func(t *testing.T) {
		h, err := NewWithReader(bytes.NewReader(nil)).HealthCheck()
		if err == nil || h.Healthy || h.Error == "" {
			t.Errorf("Expected failed health check, got %+v, %v", h, err)
		}
	})
}

func TestChiSquare(t *testing.T) {
	uniform := []int{100, 100, 100, 100}
	if stat := chiSquare(uniform, 400); stat != 0 {
		t.Errorf("Expected 0 for exact uniform counts, got %f", stat)
	}

	// Tabulated 99th percentile for 19 degrees of freedom is 36.19
	if c := chiSquareCritical(19); c < 35.5 || c > 37 {
		t.Errorf("Expected critical value near 36.19, got %f", c)
	}
}
