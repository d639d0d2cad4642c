package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestFixed(t *testing.T) {
	start := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	c := NewFixed(start)
	assert.Equal(t, start, c.Now())

	c.Advance(90 * time.Minute)
	assert.Equal(t, start.Add(90*time.Minute), c.Now())

	c.Set(start)
	assert.Equal(t, start, c.Now())
}

func TestFunc(t *testing.T) {
	want := time.Date(2030, 5, 1, 0, 0, 0, 0, time.UTC)
	var c Clock = Func(func() time.Time { return want })
	assert.Equal(t, want, c.Now())
}

func TestSystem(t *testing.T) {
	before := time.Now()
	got := System{}.Now()
	assert.False(t, got.Before(before))
}
