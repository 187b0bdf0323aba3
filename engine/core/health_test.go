package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthLevel_Degrade(t *testing.T) {
	t.Run("Should keep the worse level when degrading", func(t *testing.T) {
		assert.Equal(t, HealthDegraded, HealthHealthy.Degrade(HealthDegraded))
		assert.Equal(t, HealthUnhealthy, HealthDegraded.Degrade(HealthUnhealthy))
	})

	t.Run("Should never upgrade severity back toward healthy", func(t *testing.T) {
		assert.Equal(t, HealthUnhealthy, HealthUnhealthy.Degrade(HealthHealthy))
		assert.Equal(t, HealthDegraded, HealthDegraded.Degrade(HealthHealthy))
	})

	t.Run("Should render stable string names", func(t *testing.T) {
		assert.Equal(t, "healthy", HealthHealthy.String())
		assert.Equal(t, "degraded", HealthDegraded.String())
		assert.Equal(t, "unhealthy", HealthUnhealthy.String())
	})
}

func TestMultiError(t *testing.T) {
	t.Run("Should ignore nil errors on append", func(t *testing.T) {
		var multi *MultiError
		multi = AppendError(multi, nil)
		assert.Nil(t, multi)
		assert.NoError(t, multi.ErrorOrNil())
	})

	t.Run("Should collect and render multiple errors", func(t *testing.T) {
		var multi *MultiError
		multi = AppendError(multi, errors.New("stop failed"))
		multi = AppendError(multi, errors.New("close failed"))
		require.Len(t, multi.Errors, 2)
		assert.Contains(t, multi.Error(), "2 errors occurred")
		assert.Contains(t, multi.Error(), "stop failed")
		assert.Error(t, multi.ErrorOrNil())
	})

	t.Run("Should render a single error without prefix", func(t *testing.T) {
		multi := AppendError(nil, errors.New("boom"))
		assert.Equal(t, "boom", multi.Error())
	})
}
