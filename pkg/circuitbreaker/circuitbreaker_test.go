package circuitbreaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreakerOpensAfterMaxFailures(t *testing.T) {
	b := New(Config{MaxFailures: 2, ResetTimeout: 50 * time.Millisecond})
	failing := errors.New("boom")

	require.ErrorIs(t, b.Execute(func() error { return failing }), failing)
	require.ErrorIs(t, b.Execute(func() error { return failing }), failing)
	assert.Equal(t, StateOpen, b.State())

	err := b.Execute(func() error { return nil })
	assert.ErrorIs(t, err, ErrOpen)
}

func TestBreakerHalfOpensAndRecovers(t *testing.T) {
	b := New(Config{MaxFailures: 1, ResetTimeout: 10 * time.Millisecond})
	require.Error(t, b.Execute(func() error { return errors.New("boom") }))
	assert.Equal(t, StateOpen, b.State())

	time.Sleep(20 * time.Millisecond)
	require.NoError(t, b.Execute(func() error { return nil }))
	assert.Equal(t, StateClosed, b.State())
}
