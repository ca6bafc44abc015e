package main

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfigFile(t *testing.T, contents string) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(filename, []byte(contents), 0644); err != nil {
		t.Fatal(err)
	}
	return filename
}

func TestGetConfig(t *testing.T) {
	filename := writeConfigFile(t, `
app: webapp
version: 4
origin: https://app.example.com
port: 3000
precache:
  - /
  - /index.html
`)

	config, err := getConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if config.App != "webapp" || config.Version != 4 {
		t.Fatalf("Config is %+v", config)
	}
	if config.Port != 3000 {
		t.Fatalf("Port is %d", config.Port)
	}
	if len(config.Precache) != 2 {
		t.Fatalf("Precache is %v", config.Precache)
	}
}

func TestEnvOverridesConfigFile(t *testing.T) {
	filename := writeConfigFile(t, "app: webapp\nversion: 4\norigin: https://app.example.com\n")
	t.Setenv("CACHEFRONT_VERSION", "5")
	t.Setenv("CACHEFRONT_PRECACHE", "/,/index.html,/app.js")

	config, err := getConfig(filename)
	if err != nil {
		t.Fatal(err)
	}
	if config.Version != 5 {
		t.Fatalf("Version is %d", config.Version)
	}
	if len(config.Precache) != 3 {
		t.Fatalf("Precache is %v", config.Precache)
	}
	// values without an override stay as configured
	if config.App != "webapp" {
		t.Fatalf("App is %s", config.App)
	}
}
