package projection

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTouchKeepsCreation(t *testing.T) {
	t0 := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	first := Metadata{}.Touch(t0)
	assert.Equal(t, t0, first.CreatedAt)
	assert.Equal(t, t0, first.UpdatedAt)

	second := first.Touch(t0.Add(time.Hour))
	assert.Equal(t, t0, second.CreatedAt)
	assert.Equal(t, t0.Add(time.Hour), second.UpdatedAt)

	p := New("fund", second)
	assert.Equal(t, "fund", p.Entity)
	assert.Equal(t, second, p.Metadata)
}
