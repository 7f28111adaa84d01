package puzzle_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/victornm/bananaquiz/internal/errors"
	"github.com/victornm/bananaquiz/internal/puzzle"
)

func TestSolutionCipher_RoundTrip(t *testing.T) {
	for sol := 1; sol <= 9; sol++ {
		enc := puzzle.EncryptSolution(sol)
		require.NotEqual(t, string(rune('0'+sol)), enc)

		got, err := puzzle.DecryptSolution(enc)
		require.NoError(t, err)
		require.Equal(t, sol, got)
	}
}

func TestDecryptSolution_Invalid(t *testing.T) {
	tests := map[string]string{
		"not base64":       "%%%",
		"not a number":     "AAAA",
		"empty ciphertext": "",
	}

	for name, in := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := puzzle.DecryptSolution(in)
			require.ErrorIs(t, err, errors.ErrDecryptionFailure)
		})
	}
}
