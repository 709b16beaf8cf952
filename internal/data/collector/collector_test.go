package collector

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Error(msg string, fields ...interface{}) {}
func (nopLogger) Info(msg string, fields ...interface{})  {}

type stubSource struct {
	name     string
	price    float64
	solPrice float64
	err      error
	calls    int
}

func (s *stubSource) Name() string { return s.name }

func (s *stubSource) TokenPrice(ctx context.Context, mint string) (float64, error) {
	s.calls++
	return s.price, s.err
}

func (s *stubSource) SolPrice(ctx context.Context) (float64, error) {
	return s.solPrice, s.err
}

func TestMultiSourceCollector_Fallback(t *testing.T) {
	tests := []struct {
		name        string
		sources     []*stubSource
		wantPrice   float64
		wantSol     float64
		expectError bool
	}{
		{
			name:      "first source wins",
			sources:   []*stubSource{{name: "a", price: 1, solPrice: 150}, {name: "b", price: 2, solPrice: 160}},
			wantPrice: 1,
			wantSol:   150,
		},
		{
			name:      "falls back on error",
			sources:   []*stubSource{{name: "a", err: errors.New("down")}, {name: "b", price: 2, solPrice: 160}},
			wantPrice: 2,
			wantSol:   160,
		},
		{
			name:      "zero price is skipped",
			sources:   []*stubSource{{name: "a"}, {name: "b", price: 3, solPrice: 170}},
			wantPrice: 3,
			wantSol:   170,
		},
		{
			name:        "all sources fail",
			sources:     []*stubSource{{name: "a", err: errors.New("down")}},
			expectError: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sources := make([]DataSource, 0, len(tt.sources))
			for _, s := range tt.sources {
				sources = append(sources, s)
			}
			c := NewMultiSourceCollector(sources, nopLogger{})

			price, err := c.TokenPrice(context.Background(), "Mint111")
			sol, solErr := c.SolPrice(context.Background())
			if tt.expectError {
				assert.Error(t, err)
				assert.Error(t, solErr)
				return
			}

			require.NoError(t, err)
			require.NoError(t, solErr)
			assert.Equal(t, tt.wantPrice, price)
			assert.Equal(t, tt.wantSol, sol)
		})
	}
}

func TestMultiSourceCollector_SubscribeToPrices(t *testing.T) {
	src := &stubSource{name: "a", price: 0.5}
	c := NewMultiSourceCollector([]DataSource{src}, nopLogger{})

	ctx, cancel := context.WithCancel(context.Background())
	ch := c.SubscribeToPrices(ctx, []string{"Mint111"}, 5*time.Millisecond)

	select {
	case update := <-ch:
		assert.Equal(t, "Mint111", update.Mint)
		assert.Equal(t, 0.5, update.Price)
	case <-time.After(2 * time.Second):
		t.Fatal("no price update")
	}

	cancel()
	for range ch {
	}
}
