package query

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExpandTokens(t *testing.T) {
	syn := SynonymMap{
		"affluent": {"wealthy", "high income", "high net worth", "upscale", "rich", "moneyed"},
		"urban":    {"city", "metro"},
	}

	t.Run("cap per token", func(t *testing.T) {
		got := expandTokens([]string{"affluent"}, syn, 3)
		assert.Equal(t, []string{"wealthy", "high income", "high net worth"}, got)
	})

	t.Run("no duplicates with tokens", func(t *testing.T) {
		got := expandTokens([]string{"urban", "city"}, syn, 5)
		assert.Equal(t, []string{"metro"}, got)
	})

	t.Run("no duplicates across tokens", func(t *testing.T) {
		dup := SynonymMap{
			"a": {"shared", "x"},
			"b": {"shared", "y"},
		}
		got := expandTokens([]string{"a", "b"}, dup, 5)
		assert.Equal(t, []string{"shared", "x", "y"}, got)
	})

	t.Run("zero cap disables expansion", func(t *testing.T) {
		assert.Nil(t, expandTokens([]string{"affluent"}, syn, 0))
	})

	t.Run("unknown tokens yield nothing", func(t *testing.T) {
		assert.Nil(t, expandTokens([]string{"scuba"}, syn, 5))
	})
}
