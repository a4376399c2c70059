// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package xdg

// Table 1-1 https://developer.apple.com/library/archive/documentation/General/Conceptual/MOSXAppProgrammingGuide/AppRuntime/AppRuntime.html
const (
	_HOME = "HOME"

	key_XDG_CONFIG_HOME = ""
	def_XDG_CONFIG_HOME = "Library/Application Support"

	key_XDG_CONFIG_DIRS = ""
	def_XDG_CONFIG_DIRS = "/Library/Application Support"

	// XDG_RUNTIME_DIR is honoured to allow testing.
	key_XDG_RUNTIME_DIR = "XDG_RUNTIME_DIR"
	def_XDG_RUNTIME_DIR = "Library/Application Support"
)
