package main

import (
	"bytes"
	"testing"
)

func TestRootCommand_ErrorsAreReportedOnce(t *testing.T) {
	var stderr bytes.Buffer
	rootCmd.SetErr(&stderr)
	rootCmd.SetArgs([]string{"no-such-command"})
	t.Cleanup(func() {
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})

	if err := rootCmd.Execute(); err == nil {
		t.Fatalf("expected an unknown command to fail")
	}
	if stderr.Len() != 0 {
		t.Fatalf("expected cobra to leave error reporting to main, got %q", stderr.String())
	}
}
