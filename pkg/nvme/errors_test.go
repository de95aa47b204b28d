package nvme

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorWrappingAndCode(t *testing.T) {
	cause := errors.New("read failed")
	err := WrapError(ErrCodeTruncated, "smart log truncated", cause)

	assert.Equal(t, ErrCodeTruncated, CodeOf(err))
	assert.True(t, IsCode(err, ErrCodeTruncated))
	assert.False(t, IsCode(err, ErrCodeTimeout))
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "smart log truncated")
	assert.Contains(t, err.Error(), "read failed")
}

func TestCodeOfWrappedChain(t *testing.T) {
	inner := NewError(ErrCodeDeviceGone, "device nvme0 is gone")
	outer := fmt.Errorf("poll failed: %w", inner)

	assert.Equal(t, ErrCodeDeviceGone, CodeOf(outer))
	assert.True(t, IsCode(outer, ErrCodeDeviceGone))
}

func TestCodeOfPlainError(t *testing.T) {
	assert.Equal(t, ErrCodeInternal, CodeOf(errors.New("boom")))
}

func TestErrorContext(t *testing.T) {
	err := WrapErrorWithContext(ErrCodeProtocolStatus, "admin command failed", nil,
		map[string]any{"status": uint32(0x4004)})

	var typed *Error
	require.True(t, errors.As(err, &typed))
	assert.Equal(t, uint32(0x4004), typed.Context["status"])
}
