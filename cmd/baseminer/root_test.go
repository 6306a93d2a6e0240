package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMaskHex(t *testing.T) {
	assert.Equal(t, "(not set)", maskHex(""))
	assert.Equal(t, "***", maskHex("0x1234"))
	assert.Equal(t, "0xabcd…7890", maskHex("0xabcdef0000000000000000000000000000001234567890"))
}

func TestCommandsRegistered(t *testing.T) {
	for _, name := range []string{"serve", "status", "capabilities", "version"} {
		c, _, err := rootCmd.Find([]string{name})
		assert.NoError(t, err, name)
		assert.Equal(t, name, c.Name())
	}
}
