package app

import (
	"testing"

	"github.com/stretchr/testify/assert"

	_ "github.com/odyssey-erp/odyssey-invoice/testing"
)

func TestInTestMode(t *testing.T) {
	assert.True(t, InTestMode())

	for value, want := range map[string]bool{
		"0":     false,
		"1":     true,
		"true":  true,
		"false": false,
		"yes":   false,
		"":      false,
	} {
		t.Setenv(TestModeVar, value)
		RefreshTestMode()
		assert.Equal(t, want, InTestMode(), "value %q", value)
	}

	t.Setenv(TestModeVar, "1")
	RefreshTestMode()
	assert.True(t, InTestMode())
}
