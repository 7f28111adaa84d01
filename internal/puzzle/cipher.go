package puzzle

import (
	"encoding/base64"
	"strconv"

	"github.com/victornm/bananaquiz/internal/errors"
)

// secretKey obfuscates cached solutions at rest. It only deters casual peeking, it is not encryption.
const secretKey = "banana_puzzle_secret_2024"

func EncryptSolution(solution int) string {
	return base64.StdEncoding.EncodeToString(xor([]byte(strconv.Itoa(solution))))
}

func DecryptSolution(encoded string) (int, error) {
	b, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return 0, errors.From(errors.ErrDecryptionFailure, errors.WithCause(err))
	}

	n, err := strconv.Atoi(string(xor(b)))
	if err != nil {
		return 0, errors.From(errors.ErrDecryptionFailure, errors.WithCause(err))
	}

	return n, nil
}

func xor(b []byte) []byte {
	out := make([]byte, len(b))
	for i := range b {
		out[i] = b[i] ^ secretKey[i%len(secretKey)]
	}
	return out
}
