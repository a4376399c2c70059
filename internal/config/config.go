// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

// Package config provides animation configuration loading, validation
// and live reloading.
package config

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/kortschak/ardilla"
	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v2"
)

// Config is an animation configuration.
type Config struct {
	Device     Device      `json:"device" toml:"device" yaml:"device"`
	Animations []Animation `json:"animation,omitempty" toml:"animation" yaml:"animation"`
}

// Device is the configuration of the button deck.
type Device struct {
	// PID is the product ID of the device.
	PID ardilla.PID `json:"pid,omitempty" toml:"pid" yaml:"pid"`
	// Serial is the device serial number.
	Serial string `json:"serial,omitempty" toml:"serial" yaml:"serial"`
	// Brightness is the brightness percentage of the
	// device. If nil, the brightness is not changed.
	Brightness *int `json:"brightness,omitempty" toml:"brightness" yaml:"brightness"`
	// Background is the #rrggbb color of buttons
	// without an animation.
	Background string `json:"background,omitempty" toml:"background" yaml:"background"`
}

// BackgroundColor returns the configured background color, or black if
// none is configured.
func (d Device) BackgroundColor() (color.Color, error) {
	if d.Background == "" {
		return color.Black, nil
	}
	c, err := colorful.Hex(d.Background)
	if err != nil {
		return nil, fmt.Errorf("invalid background: %w", err)
	}
	return c, nil
}

// Animation is the configuration of an animated button.
type Animation struct {
	// Name is a label used in logging.
	Name string `json:"name,omitempty" toml:"name" yaml:"name"`
	// Row and Col are the position of the button.
	Row int `json:"row" toml:"row" yaml:"row"`
	Col int `json:"col" toml:"col" yaml:"col"`
	// Frames is the list of frame image files. Relative
	// paths are relative to the configuration file.
	Frames []string `json:"frames,omitempty" toml:"frames" yaml:"frames"`
	// GIF is an animated GIF file to take frames from.
	// Only one of Frames and GIF may be set.
	GIF string `json:"gif,omitempty" toml:"gif" yaml:"gif"`
	// PeriodMS is the frame period in milliseconds. It is
	// required for Frames and overrides the GIF delay.
	PeriodMS int `json:"period_ms,omitempty" toml:"period_ms" yaml:"period_ms"`
	// Repeat is the number of passes through the frames,
	// with zero meaning forever. For GIFs, zero uses the
	// GIF's loop count.
	Repeat int `json:"repeat,omitempty" toml:"repeat" yaml:"repeat"`
}

// Period returns the configured frame period.
func (a Animation) Period() time.Duration {
	return time.Duration(a.PeriodMS) * time.Millisecond
}

// Label returns the name of the animation, or its position if it has
// no name.
func (a Animation) Label() string {
	if a.Name != "" {
		return a.Name
	}
	return fmt.Sprintf("%d,%d", a.Row, a.Col)
}

// Schema is the CUE schema for a valid configuration.
const Schema = `
{
	device?:    _#device
	animation?: [... _#animation]
}

_#device: {
	pid?:        uint16
	serial?:     string
	brightness?: int & >=0 & <=100
	background?: =~"^#[0-9a-fA-F]{6}$"
}

_#animation: {
	name?:      string
	row:        uint
	col:        uint
	frames?:    [string, ...string]
	gif?:       string & !=""
	period_ms?: int & >0
	repeat?:    int & >=0
}
`

// Load reads the configuration file at path. TOML and YAML files are
// accepted, distinguished by file extension.
func Load(path string) (*Config, Sum, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, Sum{}, err
	}
	return Unmarshal(filepath.Ext(path), b)
}

// Unmarshal decodes and validates the configuration in b using the
// format indicated by the file extension ext. It returns the
// configuration and its semantic hash.
func Unmarshal(ext string, b []byte) (*Config, Sum, error) {
	var cfg Config
	var err error
	switch strings.ToLower(ext) {
	case ".toml":
		err = toml.Unmarshal(b, &cfg)
	case ".yaml", ".yml":
		err = yaml.UnmarshalStrict(b, &cfg)
	default:
		return nil, Sum{}, fmt.Errorf("unknown config format: %q", ext)
	}
	if err != nil {
		return nil, Sum{}, err
	}
	_, err = Validate(Schema, cfg)
	if err != nil {
		return nil, Sum{}, err
	}
	err = cfg.check()
	if err != nil {
		return nil, Sum{}, err
	}
	sum, err := hash(&cfg)
	if err != nil {
		return nil, Sum{}, err
	}
	return &cfg, sum, nil
}

// check performs the validation not expressed in the schema.
func (c *Config) check() error {
	var errs []error
	seen := make(map[[2]int]string)
	for i, a := range c.Animations {
		switch {
		case len(a.Frames) == 0 && a.GIF == "":
			errs = append(errs, fmt.Errorf("animation %d (%s): no frames or gif", i, a.Label()))
		case len(a.Frames) != 0 && a.GIF != "":
			errs = append(errs, fmt.Errorf("animation %d (%s): both frames and gif", i, a.Label()))
		case len(a.Frames) != 0 && a.PeriodMS <= 0:
			errs = append(errs, fmt.Errorf("animation %d (%s): frames without period_ms", i, a.Label()))
		}
		pos := [2]int{a.Row, a.Col}
		if prev, ok := seen[pos]; ok {
			errs = append(errs, fmt.Errorf("animation %d (%s): button %d,%d already used by %s", i, a.Label(), a.Row, a.Col, prev))
		}
		seen[pos] = a.Label()
	}
	return errors.Join(errs...)
}

// Sum is a SHA-1 sum of a configuration.
type Sum [sha1.Size]byte

func (s Sum) String() string {
	return hex.EncodeToString(s[:])
}

// hash returns the semantic hash of cfg.
func hash(cfg *Config) (Sum, error) {
	h := sha1.New()
	err := json.NewEncoder(h).Encode(cfg)
	if err != nil {
		return Sum{}, err
	}
	return Sum(h.Sum(nil)), nil
}
