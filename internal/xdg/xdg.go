// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package xdg provides functions for locating cross-platform configuration
// and runtime directories.
package xdg

import (
	"os"
	"path/filepath"
	"syscall"
)

// Config returns the path to the named file found first in the config
// home directory and, if local is false, the system config directories. If no file is found Config returns ENOENT.
func Config(name string, local bool) (string, error) {
	home, ok := configHome()
	var dirs []string
	if ok {
		dirs = append(dirs, home)
	}
	if !local {
		list, ok := envOrDefault(key_XDG_CONFIG_DIRS, def_XDG_CONFIG_DIRS, "")
		if ok {
			dirs = append(dirs, filepath.SplitList(list)...)
		}
	}
	return find(name, dirs)
}

// configHome returns the path corresponding to XDG_CONFIG_HOME.
func configHome() (string, bool) {
	return envOrDefault(key_XDG_CONFIG_HOME, def_XDG_CONFIG_HOME, _HOME)
}

// RuntimeDir returns the path corresponding to XDG_RUNTIME_DIR.
func RuntimeDir() (string, bool) {
	return envOrDefault(key_XDG_RUNTIME_DIR, def_XDG_RUNTIME_DIR, _HOME)
}

// find returns the path to the named file found first in dirs.
func find(name string, dirs []string) (string, error) {
	for _, base := range dirs {
		path := filepath.Join(base, name)
		_, err := os.Stat(path)
		if err == nil {
			return path, nil
		}
	}
	return "", syscall.ENOENT
}

// envOrDefault return the path or path list corresponding to the provided
// key and default. If home is not empty, the default is treated as an absolute
// path or path list and returned unaltered, otherwise the default is returned
// relative to home.
func envOrDefault(key, def, home string) (string, bool) {
	if key != "" {
		val, ok := os.LookupEnv(key)
		if ok {
			return val, true
		}
	}
	if def == "" {
		return "", false
	}
	if home == "" || filepath.IsAbs(def) {
		return def, true
	}
	base, ok := os.LookupEnv(home)
	if !ok {
		return "", false
	}
	return filepath.Join(base, def), true
}
