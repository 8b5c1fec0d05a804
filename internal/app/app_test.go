package app

import (
	"errors"
	"testing"
	"time"

	"lead-enricher/internal/common/logger"

	"github.com/stretchr/testify/assert"
)

func TestRetryWithBackoff(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(func() error {
		calls++
		if calls < 3 {
			return errors.New("connection refused")
		}
		return nil
	}, 5, time.Millisecond, logger.NewTestLogger(t), "op")

	assert.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetryWithBackoff_GivesUp(t *testing.T) {
	calls := 0
	err := RetryWithBackoff(func() error {
		calls++
		return errors.New("connection refused")
	}, 3, time.Millisecond, logger.NewNoOpLogger(), "PostgreSQL connection")

	assert.EqualError(t, err, "PostgreSQL connection failed after 3 attempts: connection refused")
	assert.Equal(t, 3, calls)
}
