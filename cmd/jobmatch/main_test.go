package main

import (
	"bytes"
	"testing"
)

func TestRootCommands(t *testing.T) {
	root := newRootCmd()
	for _, name := range []string{"ingest", "fit-tfidf", "fit-kmeans", "process", "summary", "models", "rename-clusters", "search"} {
		cmd, _, err := root.Find([]string{name})
		if err != nil || cmd.Name() != name {
			t.Errorf("Find(%q) = %v, %v", name, cmd, err)
		}
	}
}

func TestIngestRequiresFlags(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"ingest", "--source", "APEC"})
	if err := root.Execute(); err == nil {
		t.Error("ingest without --file error = nil, want required flag error")
	}
}
