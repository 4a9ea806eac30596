// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

var (
	configValidate *validator.Validate
	validateOnce   sync.Once
)

var ruleIDPattern = regexp.MustCompile(`^[a-z0-9][a-z0-9_\-/]*$`)

// validate returns the shared validator with the config validations
// registered.
func validate() *validator.Validate {
	validateOnce.Do(func() {
		configValidate = validator.New(validator.WithRequiredStructEnabled())
		_ = configValidate.RegisterValidation("ruleid", func(fl validator.FieldLevel) bool {
			return ruleIDPattern.MatchString(fl.Field().String())
		})
		_ = configValidate.RegisterValidation("glob", func(fl validator.FieldLevel) bool {
			_, err := path.Match(strings.ReplaceAll(fl.Field().String(), "**", "*"), "")
			return err == nil
		})
	})
	return configValidate
}

// Parse decodes and validates configuration data.
//
// Inputs:
//
//	data - YAML document. Unknown keys are rejected.
//	source - Path recorded in Config.Path; may be empty.
//
// Outputs:
//
//	*Config - The configuration.
//	error - Wraps ErrInvalidConfig for decode and validation failures.
func Parse(data []byte, source string) (*Config, error) {
	cfg := Default()
	cfg.Path = source

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, displayName(source), err)
	}

	if err := validate().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidConfig, displayName(source), strings.Join(msgs, "; "))
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, displayName(source), err)
	}
	return cfg, nil
}

func displayName(source string) string {
	if source == "" {
		return "<config>"
	}
	return source
}

// ParseTOML decodes and validates a TOML configuration.
//
// Description:
//
//	The document is decoded generically and re-encoded as YAML, so both
//	formats share one schema, one set of validations and the same
//	unknown-key errors. Keys are the YAML keys ("max-passes").
func ParseTOML(data []byte, source string) (*Config, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, displayName(source), err)
	}
	if len(doc) == 0 {
		return Parse(nil, source)
	}
	out, err := yaml.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidConfig, displayName(source), err)
	}
	return Parse(out, source)
}

// Load reads and parses a configuration file. Files ending in .toml are
// parsed as TOML, everything else as YAML.
func Load(file string) (*Config, error) {
	data, err := os.ReadFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to read the config file: %w", err)
	}
	if strings.EqualFold(filepath.Ext(file), ".toml") {
		return ParseTOML(data, file)
	}
	return Parse(data, file)
}

// Find searches dir and its ancestors for a configuration file.
//
// Outputs:
//
//	string - The path found, or "" if none exists.
func Find(dir string) string {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return ""
	}
	for {
		for _, name := range FileNames {
			candidate := filepath.Join(dir, name)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate
			}
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

// Discover loads the configuration nearest to dir, or the defaults.
func Discover(dir string) (*Config, error) {
	found := Find(dir)
	if found == "" {
		return Default(), nil
	}
	return Load(found)
}

// =============================================================================
// IGNORE PATTERNS
// =============================================================================

// Ignored reports whether a path matches an ignore pattern.
//
// Description:
//
//	Paths are matched relative to the configuration's directory (or as
//	given when there is no configuration file), with forward slashes.
//	Patterns without a slash match the base name at any depth; "**"
//	matches any number of directories; a pattern naming a directory
//	matches everything below it.
func (c *Config) Ignored(p string) bool {
	if len(c.Ignore) == 0 {
		return false
	}
	rel := p
	if c.Path != "" {
		if abs, err := filepath.Abs(p); err == nil {
			if r, err := filepath.Rel(filepath.Dir(c.Path), abs); err == nil && !strings.HasPrefix(r, "..") {
				rel = r
			}
		}
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	for _, pattern := range c.Ignore {
		if MatchGlob(pattern, rel) {
			return true
		}
	}
	return false
}

// MatchGlob matches a slash-separated path against an ignore pattern.
func MatchGlob(pattern, name string) bool {
	pattern = strings.TrimPrefix(pattern, "./")
	pattern = strings.TrimSuffix(pattern, "/")
	if !strings.Contains(pattern, "/") {
		pattern = "**/" + pattern
	}
	parts := strings.Split(name, "/")
	// A pattern matching a directory also ignores its contents.
	for i := len(parts); i > 0; i-- {
		if matchSegments(strings.Split(pattern, "/"), parts[:i]) {
			return true
		}
	}
	return false
}

func matchSegments(pattern, name []string) bool {
	for len(pattern) > 0 {
		if pattern[0] == "**" {
			for i := 0; i <= len(name); i++ {
				if matchSegments(pattern[1:], name[i:]) {
					return true
				}
			}
			return false
		}
		if len(name) == 0 {
			return false
		}
		if ok, _ := path.Match(pattern[0], name[0]); !ok {
			return false
		}
		pattern, name = pattern[1:], name[1:]
	}
	return len(name) == 0
}
