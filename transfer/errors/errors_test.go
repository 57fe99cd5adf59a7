// Package errors provides tests for the transfer error taxonomy.
package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestError_Error tests message formatting with varying context.
func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  *Error
		want string
	}{
		{
			name: "operation only",
			err:  NewError("expand", errors.New("listing failed")),
			want: "transfer.expand: listing failed",
		},
		{
			name: "with source",
			err:  NewError("download", errors.New("not found")).WithSource("s3://bucket/key"),
			want: "transfer.download s3://bucket/key: not found",
		},
		{
			name: "with destination",
			err:  NewError("upload", errors.New("denied")).WithDest("s3://bucket/out.csv"),
			want: "transfer.upload -> s3://bucket/out.csv: denied",
		},
		{
			name: "with both",
			err:  NewError("download", errors.New("timeout")).WithSource("s3://b/in").WithDest("/tmp/out"),
			want: "transfer.download s3://b/in -> /tmp/out: timeout",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

// TestError_Unwrap tests that sentinel matching survives wrapping.
func TestError_Unwrap(t *testing.T) {
	err := NewError("normalize", ErrInvalidRequestShape).WithMessage("bare string upload")

	require.ErrorIs(t, err, ErrInvalidRequestShape)
	assert.Contains(t, err.Error(), "bare string upload")
}

// TestSentinelHelpers tests the Is* convenience functions.
func TestSentinelHelpers(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		matches func(error) bool
	}{
		{"invalid shape", NewError("normalize", ErrInvalidRequestShape), IsInvalidRequestShape},
		{"malformed uri", NewError("parse", ErrMalformedURI), IsMalformedURI},
		{"unsupported format", NewError("encode", ErrUnsupportedUploadFormat), IsUnsupportedUploadFormat},
		{"timeout", NewError("download", fmt.Errorf("%w: deadline", ErrTimeout)), IsTimeout},
		{"canceled", NewError("run", ErrCanceled), IsCanceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.True(t, tt.matches(tt.err))
			assert.False(t, tt.matches(errors.New("unrelated")))
		})
	}
}
