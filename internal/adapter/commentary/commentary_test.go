package commentary

import (
	"context"
	"testing"
	"time"

	"taixiu-dealer/internal/core/domain"
	"taixiu-dealer/internal/core/ports"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatChips(t *testing.T) {
	tests := map[int64]string{
		0:         "0",
		999:       "999",
		1000:      "1,000",
		1_010_000: "1,010,000",
		-25_000:   "-25,000",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatChips(in))
	}
}

func TestBuildPrompt(t *testing.T) {
	req := ports.CommentaryRequest{
		Result:  domain.Classify(domain.Dice{2, 2, 2}, time.Now()),
		Balance: 50_000,
	}
	p := buildPrompt(req)

	assert.Contains(t, p, "2, 2, 2")
	assert.Contains(t, p, "Tổng điểm: 6")
	assert.Contains(t, p, "XỈU")
	assert.Contains(t, p, "50,000 chip")
	assert.Contains(t, p, "dưới 30 chữ")
	assert.Contains(t, p, "Ván này là Bão!")

	plain := buildPrompt(ports.CommentaryRequest{Result: domain.Classify(domain.Dice{1, 2, 3}, time.Now())})
	assert.NotContains(t, plain, "Ván này là Bão!")
}

func TestScriptedCommentator(t *testing.T) {
	c := NewScriptedCommentator()
	ctx := context.Background()

	t.Run("deterministic", func(t *testing.T) {
		req := ports.CommentaryRequest{Result: domain.Classify(domain.Dice{4, 5, 3}, time.Now()), Balance: 11_000}
		a, err := c.Comment(ctx, req)
		require.NoError(t, err)
		b, err := c.Comment(ctx, req)
		require.NoError(t, err)

		assert.Equal(t, a, b)
		assert.Contains(t, a, "12")
		assert.Contains(t, a, "11,000")
	})

	t.Run("triple callout", func(t *testing.T) {
		text, err := c.Comment(ctx, ports.CommentaryRequest{Result: domain.Classify(domain.Dice{5, 5, 5}, time.Now())})
		require.NoError(t, err)
		assert.Contains(t, text, "Bão 5-5-5")
	})

	t.Run("side wording", func(t *testing.T) {
		small, err := c.Comment(ctx, ports.CommentaryRequest{Result: domain.Classify(domain.Dice{1, 2, 4}, time.Now())})
		require.NoError(t, err)
		assert.Contains(t, small, "Xỉu")

		big, err := c.Comment(ctx, ports.CommentaryRequest{Result: domain.Classify(domain.Dice{6, 5, 4}, time.Now())})
		require.NoError(t, err)
		assert.Contains(t, big, "Tài")
	})
}
