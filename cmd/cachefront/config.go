package main

import (
	"os"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

// Config is the daemon configuration. Values are read from a YAML file,
// then overridden by environment variables, then by CLI flags.
type Config struct {
	App           string   `yaml:"app" env:"CACHEFRONT_APP"`
	Version       int      `yaml:"version" env:"CACHEFRONT_VERSION"`
	Origin        string   `yaml:"origin" env:"CACHEFRONT_ORIGIN"`
	Host          string   `yaml:"host" env:"CACHEFRONT_HOST"`
	EntryDocument string   `yaml:"entryDocument" env:"CACHEFRONT_ENTRY_DOCUMENT"`
	Precache      []string `yaml:"precache" env:"CACHEFRONT_PRECACHE" envSeparator:","`
	Port          int      `yaml:"port" env:"CACHEFRONT_PORT"`
	DBFilename    string   `yaml:"db" env:"CACHEFRONT_DB"`
	LogFilename   string   `yaml:"logFile" env:"CACHEFRONT_LOG_FILE"`
}

func getConfig(filename string) (Config, error) {
	var config Config
	if filename != "" {
		configBytes, err := os.ReadFile(filename)
		if err != nil {
			return config, err
		}
		if err := yaml.Unmarshal(configBytes, &config); err != nil {
			return config, err
		}
	}
	err := env.Parse(&config)
	return config, err
}
