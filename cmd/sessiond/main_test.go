package main

import (
	"testing"
)

func TestNewRootCmd_RegistersServeAndConfig(t *testing.T) {
	root := newRootCmd()

	var names []string
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}

	wantServe, wantConfig := false, false
	for _, n := range names {
		if n == "serve" {
			wantServe = true
		}
		if n == "config" {
			wantConfig = true
		}
	}
	if !wantServe {
		t.Errorf("expected a 'serve' subcommand, got %v", names)
	}
	if !wantConfig {
		t.Errorf("expected a 'config' subcommand, got %v", names)
	}
}

func TestServeCommand_BindFlagDefaultsEmpty(t *testing.T) {
	root := newRootCmd()
	for _, c := range root.Commands() {
		if c.Name() != "serve" {
			continue
		}
		flag := c.Flags().Lookup("bind")
		if flag == nil {
			t.Fatal("expected serve to register a --bind flag")
		}
		if flag.DefValue != "" {
			t.Errorf("expected --bind to default empty (fall back to config.yaml), got %q", flag.DefValue)
		}
		return
	}
	t.Fatal("serve subcommand not found")
}
