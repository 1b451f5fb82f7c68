package commands

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetVersionInfo(t *testing.T) {
	SetVersionInfo("1.2.3", "abc1234", "2026-08-26")
	assert.Equal(t, "1.2.3 (commit: abc1234, built: 2026-08-26)", rootCmd.Version)
}

func TestRootCommandWiring(t *testing.T) {
	subcommands := map[string]bool{}
	for _, cmd := range rootCmd.Commands() {
		subcommands[cmd.Name()] = true
	}

	for _, name := range []string{"watch", "rollover", "serve", "edit", "move"} {
		assert.True(t, subcommands[name], "missing subcommand %q", name)
	}

	t.Run("persistent flags", func(t *testing.T) {
		configFlag := rootCmd.PersistentFlags().Lookup("config")
		require.NotNil(t, configFlag)
		assert.Equal(t, "waggle.yml", configFlag.DefValue)

		require.NotNil(t, rootCmd.PersistentFlags().Lookup("workspace"))
	})

	t.Run("errors stay quiet for the printer", func(t *testing.T) {
		assert.True(t, rootCmd.SilenceErrors)
		assert.True(t, rootCmd.SilenceUsage)
	})
}
