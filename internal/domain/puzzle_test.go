package domain_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/victornm/bananaquiz/internal/domain"
)

func TestParseAnswer(t *testing.T) {
	tests := map[string]struct {
		answer string
		want   int
		ok     bool
	}{
		"plain":             {answer: "5", want: 5, ok: true},
		"leading spaces":    {answer: "  5", want: 5, ok: true},
		"trailing spaces":   {answer: "5 \n", want: 5, ok: true},
		"leading zero":      {answer: "05", want: 5, ok: true},
		"decimal":           {answer: "5.0", want: 5, ok: true},
		"trailing text":     {answer: "5 junk", want: 5, ok: true},
		"signed":            {answer: "-3", want: -3, ok: true},
		"plus":              {answer: "+7", want: 7, ok: true},
		"empty":             {answer: "", ok: false},
		"blank":             {answer: "   ", ok: false},
		"text":              {answer: "abc", ok: false},
		"sign only":         {answer: "-", ok: false},
		"text before digit": {answer: "x5", ok: false},
		"too large":         {answer: "99999999999999999999", ok: false},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			got, ok := domain.ParseAnswer(tc.answer)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestPuzzle_Check(t *testing.T) {
	p := domain.Puzzle{ID: "p1", Solution: 5}

	assert.True(t, p.Check("5.0"))
	assert.True(t, p.Check(" 05 bananas"))
	assert.False(t, p.Check("6"))
	assert.False(t, p.Check("five"))
}
