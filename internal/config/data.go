package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Data is the data file: content that changes more often than settings.
type Data struct {
	SimpleReplyCommands []ReplyCommand `yaml:"simple-reply-commands"`
}

// ReplyCommand answers any of Names with Reply.
type ReplyCommand struct {
	Names []string `yaml:"names"`
	Reply string   `yaml:"reply"`
}

// LoadData reads the data file.
func LoadData(path string) (*Data, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read data file: %w", err)
	}

	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("failed to parse data file: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

// Validate rejects reply commands that could never match or never answer.
func (d *Data) Validate() error {
	var errs []error
	for i, cmd := range d.SimpleReplyCommands {
		if len(cmd.Names) == 0 {
			errs = append(errs, fmt.Errorf("data: simple reply command %d has no names", i))
		}
		for _, name := range cmd.Names {
			if name == "" || strings.ContainsAny(name, " \t!") {
				errs = append(errs, fmt.Errorf("data: invalid command name %q", name))
			}
		}
		if cmd.Reply == "" {
			errs = append(errs, fmt.Errorf("data: simple reply command %v has an empty reply", cmd.Names))
		}
	}
	return errors.Join(errs...)
}
