package common

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecoveredSwallowsPanic(t *testing.T) {
	dir := t.TempDir()
	InstallCrashHandler(dir)

	entered := false
	Recovered(GetLogger(), "boom", func() {
		entered = true
		panic("kaboom")
	})
	assert.True(t, entered)

	// the panic produced a crash report and did not propagate
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, entries)
}

func TestRecoveredPassesThrough(t *testing.T) {
	ran := false
	Recovered(GetLogger(), "ok", func() { ran = true })
	assert.True(t, ran)
}
