package app_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/huddlehq/huddle/internal/app"
)

func TestJoinLimiterCapsWindow(t *testing.T) {
	l := app.NewJoinLimiter(2, time.Minute)

	assert.True(t, l.Allow("c1"))
	assert.True(t, l.Allow("c1"))
	assert.False(t, l.Allow("c1"))

	// Another connection has its own window.
	assert.True(t, l.Allow("c2"))
}

func TestJoinLimiterWindowExpires(t *testing.T) {
	l := app.NewJoinLimiter(1, 20*time.Millisecond)

	assert.True(t, l.Allow("c1"))
	assert.False(t, l.Allow("c1"))

	time.Sleep(30 * time.Millisecond)
	assert.True(t, l.Allow("c1"))
}

func TestJoinLimiterForget(t *testing.T) {
	l := app.NewJoinLimiter(1, time.Minute)

	assert.True(t, l.Allow("c1"))
	assert.False(t, l.Allow("c1"))

	l.Forget("c1")
	assert.True(t, l.Allow("c1"))
}
