package interpolation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestOriginMapsFinalIndexToPassAndPair(t *testing.T) {
	// Two passes over [A B]: [A p2.0 p1.0 p2.1 B].
	cases := []struct{ index, pass, pair int }{
		{0, 0, 0},
		{1, 2, 0},
		{2, 1, 0},
		{3, 2, 1},
		{4, 0, 1},
	}
	for _, c := range cases {
		pass, pair := origin(c.index, 2)
		assert.Equal(t, c.pass, pass, "index %d", c.index)
		assert.Equal(t, c.pair, pair, "index %d", c.index)
	}

	// Three passes: index 6 = 0b110 was produced in pass 2 as pair 1.
	pass, pair := origin(6, 3)
	assert.Equal(t, 2, pass)
	assert.Equal(t, 1, pair)
}
