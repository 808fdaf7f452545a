package backend

import (
	"context"
	"errors"
	"testing"
	"time"

	"videoextract/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractContextDeadline(t *testing.T) {
	b := NewYTDLP(30*time.Second, 2*time.Hour)

	ctx, cancel := b.extractContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(30*time.Second), deadline, time.Second)
}

func TestDownloadContextNotBoundByExtractionTimeout(t *testing.T) {
	b := NewYTDLP(30*time.Second, 2*time.Hour)

	ctx, cancel := b.downloadContext(context.Background())
	defer cancel()

	deadline, ok := ctx.Deadline()
	require.True(t, ok)
	// A transfer keeps its own generous budget; the 30s extraction bound
	// must not leak into it.
	assert.True(t, deadline.After(time.Now().Add(time.Hour)))
}

func TestDownloadContextUnboundedWhenDisabled(t *testing.T) {
	b := NewYTDLP(30*time.Second, 0)

	ctx, cancel := b.downloadContext(context.Background())
	defer cancel()

	_, ok := ctx.Deadline()
	assert.False(t, ok)
}

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		output string
		code   model.ErrorCode
	}{
		{"deadline", context.DeadlineExceeded, "", model.ErrTimeout},
		{"unsupported", errors.New("exit 1"), "ERROR: Unsupported URL: https://x", model.ErrUnsupportedURL},
		{"private", errors.New("exit 1"), "ERROR: Private video", model.ErrVideoUnavailable},
		{"age gate", errors.New("exit 1"), "Sign in to confirm your age", model.ErrAgeRestricted},
		{"geo", errors.New("exit 1"), "The uploader has not made this video available in your country", model.ErrGeoRestricted},
		{"network", errors.New("exit 1"), "Connection reset by peer", model.ErrNetwork},
		{"unknown", errors.New("something odd"), "", model.ErrInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cerr := ClassifyError(tt.err, tt.output)
			assert.Equal(t, tt.code, cerr.Code)
		})
	}
}
