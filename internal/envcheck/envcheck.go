// Copyright (c) Microsoft. All rights reserved.

// Package envcheck validates the environment a hosted agent process starts
// with.
package envcheck

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// ErrMissing is matched by every [MissingError].
var ErrMissing = errors.New("required environment variable missing")

// LookupFunc reads an environment variable. os.LookupEnv satisfies it.
type LookupFunc func(name string) (string, bool)

// MissingError names the first required variable that was unset or empty.
type MissingError struct {
	Name string
}

func (e *MissingError) Error() string {
	return fmt.Sprintf("%s environment variable must be set.", e.Name)
}

func (e *MissingError) Is(target error) bool { return target == ErrMissing }

// Require checks names in order and returns their values. The first unset or
// empty variable aborts the check with a [*MissingError].
func Require(lookup LookupFunc, names ...string) (map[string]string, error) {
	values := make(map[string]string, len(names))
	for _, name := range names {
		v, ok := lookup(name)
		if !ok || v == "" {
			return nil, &MissingError{Name: name}
		}
		values[name] = v
	}
	return values, nil
}

// Get returns the value of name, or def when it is unset or empty.
func Get(lookup LookupFunc, name, def string) string {
	if v, ok := lookup(name); ok && v != "" {
		return v
	}
	return def
}

// LoadDotEnv loads variables from the given files (".env" when none are
// given) without overriding ones already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}
