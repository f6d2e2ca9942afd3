package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCommandsRegistered(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}

	for _, want := range []string{
		"run", "crawl", "extract", "score", "rankings", "export", "reprocess", "serve",
	} {
		assert.True(t, names[want], "command %q not registered", want)
	}
}

func TestTrendIsRankingsSubcommand(t *testing.T) {
	var found bool
	for _, c := range rankingsCmd.Commands() {
		if c.Name() == "trend" {
			found = true
		}
	}
	assert.True(t, found)
}
