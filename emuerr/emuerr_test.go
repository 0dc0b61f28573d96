package emuerr

import (
	"context"
	"errors"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

func TestCheckAborted(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	assert.NoError(t, CheckAborted(ctx))

	cancel()
	err := CheckAborted(ctx)
	assert.Error(t, err)
	assert.True(t, errors.Is(err, ErrAborted))
	assert.True(t, errors.Is(err, context.Canceled))
}
