package workflow

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchCatch(t *testing.T) {
	rules := []CatchRule{
		{ErrorEquals: []string{ErrTaskTimeout}, Next: "HandleTimeout"},
		{ErrorEquals: []string{ErrAll}, Next: "HandleAnything"},
	}

	rule, ok := matchCatch(rules, newError(ErrTaskTimeout, "timed out"))
	assert.True(t, ok)
	assert.Equal(t, "HandleTimeout", rule.Next)

	rule, ok = matchCatch(rules, newError(ErrTaskFailed, "boom"))
	assert.True(t, ok)
	assert.Equal(t, "HandleAnything", rule.Next)

	_, ok = matchCatch(nil, newError(ErrTaskFailed, "boom"))
	assert.False(t, ok)
}

func TestCatchErrorObject(t *testing.T) {
	err := newError(ErrTaskFailed, "boom: %s", "reason")
	obj := catchErrorObject(err)
	m := obj.(map[string]any)
	assert.Equal(t, ErrTaskFailed, m["Error"])
	assert.Equal(t, "boom: reason", m["Cause"])
}
