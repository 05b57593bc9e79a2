package feedback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseValidFeedback(t *testing.T) {
	raw := []byte(`{
		"summary": "  Solid backend engineer. ",
		"score": 82,
		"strengths": ["Go services", " Postgres "],
		"improvements": ["Quantify impact"]
	}`)

	fb, err := Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "Solid backend engineer.", fb.Summary)
	assert.Equal(t, 82, fb.Score)
	assert.Equal(t, []string{"Go services", "Postgres"}, fb.Strengths)
	assert.True(t, fb.Complete())
}

func TestParseRejectsOutOfRangeScore(t *testing.T) {
	_, err := Parse([]byte(`{"summary":"x","score":140,"strengths":["a"],"improvements":["b"]}`))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestParseRejectsMissingFields(t *testing.T) {
	cases := map[string]string{
		"no summary":        `{"score":50,"strengths":["a"],"improvements":["b"]}`,
		"empty strengths":   `{"summary":"x","score":50,"strengths":[],"improvements":["b"]}`,
		"blank improvement": `{"summary":"x","score":50,"strengths":["a"],"improvements":[""]}`,
		"fractional score":  `{"summary":"x","score":50.5,"strengths":["a"],"improvements":["b"]}`,
		"extra field":       `{"summary":"x","score":50,"strengths":["a"],"improvements":["b"],"grade":"A"}`,
		"not json":          `score: 50`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(raw))
			require.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestParseRejectsWhitespaceOnlyItems(t *testing.T) {
	_, err := Parse([]byte(`{"summary":"x","score":50,"strengths":["   "],"improvements":["b"]}`))
	require.ErrorIs(t, err, ErrInvalid)
}

func TestCompleteOnNilAndPartial(t *testing.T) {
	var missing *Feedback
	assert.False(t, missing.Complete())
	assert.False(t, (&Feedback{Summary: "x", Score: 10}).Complete())
}
