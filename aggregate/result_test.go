package aggregate_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/messagehandler/aggregate-sourcing-go/aggregate"
)

func Test_SuccessResult(t *testing.T) {
	result := aggregate.SuccessResult()

	assert.True(t, result.IsSuccess())
	assert.False(t, result.IsFailure())
	assert.False(t, result.IsIdempotent())
	assert.Empty(t, result.FailureReason())
}

func Test_FailureResult(t *testing.T) {
	result := aggregate.FailureResult("not allowed")

	assert.True(t, result.IsFailure())
	assert.False(t, result.IsSuccess())
	assert.Equal(t, "not allowed", result.FailureReason())
}

func Test_IdempotentResult(t *testing.T) {
	result := aggregate.IdempotentResult()

	assert.True(t, result.IsIdempotent())
	assert.False(t, result.IsSuccess())
	assert.False(t, result.IsFailure())
}
