// Copyright (c) 2021 by library authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config parses the pre-boot unlocker's plain-text verb file: one
// directive per line, name followed by a free-form argument string.
package config

import (
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

var (
	ErrConfigNonUTF8     = errors.New("config: file is not valid UTF-8")
	ErrConfigVerbMissing = errors.New("config: required verb missing")
)

// LogLevel mirrors the log-level verb's five recognized values.
type LogLevel int

const (
	LevelError LogLevel = iota
	LevelWarn
	LevelInfo
	LevelDebug
	LevelTrace
)

func (l LogLevel) String() string {
	switch l {
	case LevelError:
		return "error"
	case LevelWarn:
		return "warn"
	case LevelDebug:
		return "debug"
	case LevelTrace:
		return "trace"
	default:
		return "info"
	}
}

// Config is the parsed contents of the unlocker's configuration file.
type Config struct {
	Image        string
	Args         string
	LogLevel     LogLevel
	Prompt       *string
	RetryPrompt  *string
	SedLockedMsg *string
	ClearOnRetry bool
}

type verb struct {
	name string
	arg  string
}

// verbs splits text into (name, argument) pairs: leading whitespace and
// trailing comments are stripped from each line first, then the line is
// split on its first space. An argument wrapped in a single matching pair
// of single quotes has those quotes stripped once, so a prompt verb can
// carry meaningful leading/trailing whitespace.
func verbs(text string) []verb {
	var out []verb
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimLeft(line, " \t\r")
		if idx := strings.IndexByte(line, '#'); idx >= 0 {
			line = line[:idx]
		}
		line = strings.TrimRight(line, " \t\r")
		if line == "" {
			continue
		}

		name, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		if len(arg) >= 2 && arg[0] == '\'' && arg[len(arg)-1] == '\'' {
			arg = arg[1 : len(arg)-1]
		}
		out = append(out, verb{name: name, arg: arg})
	}
	return out
}

// optional concatenates every occurrence of name's argument, joined by
// joiner when it's non-zero, or returns nil if name never appears.
func optional(vs []verb, name string, joiner byte) *string {
	var b strings.Builder
	found := false
	for _, v := range vs {
		if v.name != name {
			continue
		}
		if found && joiner != 0 {
			b.WriteByte(joiner)
		}
		b.WriteString(v.arg)
		found = true
	}
	if !found {
		return nil
	}
	s := b.String()
	return &s
}

func required(vs []verb, name string, joiner byte) (string, error) {
	v := optional(vs, name, joiner)
	if v == nil {
		return "", fmt.Errorf("%w: %q", ErrConfigVerbMissing, name)
	}
	return *v, nil
}

// Parse reads a configuration file's contents into a Config. "arg" verbs
// are joined with spaces to build the kernel/chain-load command line;
// "image" verbs are joined with backslashes, matching how a UEFI device
// path is written across multiple short lines.
func Parse(data []byte) (*Config, error) {
	if !utf8.Valid(data) {
		return nil, ErrConfigNonUTF8
	}
	vs := verbs(string(data))

	image, err := required(vs, "image", '\\')
	if err != nil {
		return nil, err
	}
	args, err := required(vs, "arg", ' ')
	if err != nil {
		return nil, err
	}

	level := LevelInfo
	if lv := optional(vs, "log-level", 0); lv != nil {
		switch *lv {
		case "error":
			level = LevelError
		case "warn":
			level = LevelWarn
		case "info":
			level = LevelInfo
		case "debug":
			level = LevelDebug
		case "trace":
			level = LevelTrace
		default:
			level = LevelInfo
		}
	}

	clearOnRetry := false
	if v := optional(vs, "clear-on-retry", 0); v != nil && *v == "on" {
		clearOnRetry = true
	}

	return &Config{
		Image:        image,
		Args:         args,
		LogLevel:     level,
		Prompt:       optional(vs, "prompt", 0),
		RetryPrompt:  optional(vs, "retry-prompt", 0),
		SedLockedMsg: optional(vs, "sed-locked-msg", 0),
		ClearOnRetry: clearOnRetry,
	}, nil
}
