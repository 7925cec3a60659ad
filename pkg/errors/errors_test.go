package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPipelineErrorFormatting(t *testing.T) {
	err := NewAdapter("blocket", "scrape failed", errors.New("timeout"))
	assert.Equal(t, "[adapter] blocket: scrape failed - timeout", err.Error())

	err = NewConfiguration("MONGODB_URI is required", nil)
	assert.Equal(t, "[configuration] : MONGODB_URI is required", err.Error())
}

func TestIsType(t *testing.T) {
	base := errors.New("dup key")
	wrapped := fmt.Errorf("upsert: %w", NewPersistence("tori", "write failed", base))

	assert.True(t, IsType(wrapped, ErrorTypePersistence))
	assert.False(t, IsType(wrapped, ErrorTypeSweep))
	assert.False(t, IsType(base, ErrorTypePersistence))
	assert.ErrorIs(t, wrapped, base)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, NewSweep("delete failed", nil).IsRetryable())
	assert.True(t, NewNetwork("dba", "reset", nil).IsRetryable())
	assert.False(t, NewTranslation("dba", "quota", nil).IsRetryable())
}
