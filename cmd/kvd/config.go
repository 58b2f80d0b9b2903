package main

import (
	"encoding/json"
	"os"
)

// Config holds every flag the server accepts, mirrored into JSON tags
// so a config file given with -c overrides the CLI flags, the same
// idiom the teacher's server/config.go uses.
type Config struct {
	Listen string `json:"listen"`
	Pprof  bool   `json:"pprof"`
	Quiet  bool   `json:"quiet"`
}

func parseJSONConfig(config *Config, path string) error {
	file, err := os.Open(path)
	if err != nil {
		return err
	}
	defer file.Close()

	return json.NewDecoder(file).Decode(config)
}
