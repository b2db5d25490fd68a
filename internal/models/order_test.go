package models

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderStatusValid(t *testing.T) {
	assert.True(t, StatusPending.Valid())
	assert.True(t, StatusInProgress.Valid())
	assert.True(t, StatusCompleted.Valid())
	assert.False(t, OrderStatus("").Valid())
	assert.False(t, OrderStatus("DELIVERED").Valid())
}

func TestOrderStart(t *testing.T) {
	t.Run("from pending", func(t *testing.T) {
		order := &Order{Code: "o-1", Status: StatusPending}
		require.NoError(t, order.Start())
		assert.Equal(t, StatusInProgress, order.Status)
	})

	t.Run("from in progress fails", func(t *testing.T) {
		order := &Order{Code: "o-1", Status: StatusInProgress}
		err := order.Start()
		require.Error(t, err)
		require.ErrorIs(t, err, ErrInvalidTransition)

		var transitionErr *InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, StatusInProgress, transitionErr.From)
		assert.Equal(t, StatusInProgress, transitionErr.To)
		// status must be untouched on failure
		assert.Equal(t, StatusInProgress, order.Status)
	})

	t.Run("from completed fails", func(t *testing.T) {
		order := &Order{Code: "o-1", Status: StatusCompleted}
		require.ErrorIs(t, order.Start(), ErrInvalidTransition)
		assert.Equal(t, StatusCompleted, order.Status)
	})
}

func TestOrderComplete(t *testing.T) {
	t.Run("from in progress", func(t *testing.T) {
		order := &Order{Code: "o-1", Status: StatusInProgress}
		require.NoError(t, order.Complete())
		assert.Equal(t, StatusCompleted, order.Status)
	})

	t.Run("from pending fails with current status", func(t *testing.T) {
		order := &Order{Code: "o-1", Status: StatusPending}
		err := order.Complete()

		var transitionErr *InvalidTransitionError
		require.ErrorAs(t, err, &transitionErr)
		assert.Equal(t, StatusPending, transitionErr.From)
		assert.Equal(t, StatusCompleted, transitionErr.To)
		assert.Equal(t, StatusPending, order.Status)
	})

	t.Run("completed is terminal", func(t *testing.T) {
		order := &Order{Code: "o-1", Status: StatusInProgress}
		require.NoError(t, order.Complete())
		// a second completion must fail explicitly, not silently no-op
		err := order.Complete()
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrInvalidTransition))
		assert.Equal(t, StatusCompleted, order.Status)
	})
}

func TestUserPassword(t *testing.T) {
	user := &User{Email: "mario@awesomepizza.it", Password: "segretissimo"}
	require.NoError(t, user.HashPassword())
	assert.NotEqual(t, "segretissimo", user.Password)
	assert.True(t, user.CheckPassword("segretissimo"))
	assert.False(t, user.CheckPassword("sbagliata"))
}
