package extractiondb

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen(t *testing.T) {
	store, closeStore, err := Open(context.Background(), OpenOptions{Driver: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, store)
	assert.NoError(t, closeStore())

	_, _, err = Open(context.Background(), OpenOptions{Driver: "sqlite"})
	assert.Error(t, err)
}

func TestRetry(t *testing.T) {
	calls := 0
	err := retry(context.Background(), func() error {
		calls++
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, 1, calls)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	calls = 0
	err = retry(ctx, func() error {
		calls++
		return errors.New("connection refused")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}
