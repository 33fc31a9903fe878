package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_generate(t *testing.T) {
	t.Run("hex of requested length", func(t *testing.T) {
		key, err := generate(32)

		require.NoError(t, err)
		require.Len(t, key, 64)
		require.Regexp(t, `^[0-9a-f]+$`, key)
	})

	t.Run("keys differ", func(t *testing.T) {
		a, err := generate(32)
		require.NoError(t, err)
		b, err := generate(32)
		require.NoError(t, err)

		require.NotEqual(t, a, b)
	})

	t.Run("too short", func(t *testing.T) {
		_, err := generate(8)
		require.Error(t, err)
	})
}
