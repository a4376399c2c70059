// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package version reports the build version.
package version

import (
	"errors"
	"runtime/debug"
	"strings"
)

// String returns the module version of the running binary, and the VCS
// revision if it is available.
func String() (string, error) {
	bi, ok := debug.ReadBuildInfo()
	if !ok {
		return "", errors.New("no build info")
	}
	return format(bi), nil
}

func format(bi *debug.BuildInfo) string {
	var revision, modified string
	for _, bs := range bi.Settings {
		switch bs.Key {
		case "vcs.revision":
			revision = bs.Value
		case "vcs.modified":
			modified = bs.Value
		}
	}
	parts := []string{bi.Main.Version}
	if revision != "" {
		parts = append(parts, revision)
		switch modified {
		case "true":
			parts = append(parts, "(modified)")
		case "false", "":
		default:
			parts = append(parts, modified)
		}
	}
	return strings.Join(parts, " ")
}
