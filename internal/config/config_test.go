// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package config

import (
	"flag"
	"image/color"
	"testing"

	"github.com/google/go-cmp/cmp"
)

var (
	verbose = flag.Bool("verbose_log", false, "print full logging")
	lines   = flag.Bool("show_lines", false, "log source code position")
)

func ptr[T any](v T) *T { return &v }

var unmarshalTests = []struct {
	name    string
	ext     string
	data    string
	want    *Config
	wantErr bool
}{
	{
		name: "toml_frames",
		ext:  ".toml",
		data: `
[device]
serial = "dev1"
brightness = 60
background = "#102030"

[[animation]]
name = "animimg"
row = 1
col = 2
frames = ["a.png", "b.png", "c.png"]
period_ms = 250
repeat = 2
`,
		want: &Config{
			Device: Device{Serial: "dev1", Brightness: ptr(60), Background: "#102030"},
			Animations: []Animation{{
				Name:     "animimg",
				Row:      1,
				Col:      2,
				Frames:   []string{"a.png", "b.png", "c.png"},
				PeriodMS: 250,
				Repeat:   2,
			}},
		},
	},
	{
		name: "yaml_gif",
		ext:  ".yaml",
		data: `
device:
  pid: 96
animation:
  - row: 0
    col: 0
    gif: dance.gif
`,
		want: &Config{
			Device:     Device{PID: 96},
			Animations: []Animation{{GIF: "dance.gif"}},
		},
	},
	{
		name: "empty",
		ext:  ".yml",
		data: ``,
		want: &Config{},
	},
	{
		name:    "unknown_format",
		ext:     ".json",
		data:    `{}`,
		wantErr: true,
	},
	{
		name: "brightness_out_of_range",
		ext:  ".toml",
		data: `
[device]
brightness = 200
`,
		wantErr: true,
	},
	{
		name: "bad_background",
		ext:  ".toml",
		data: `
[device]
background = "black"
`,
		wantErr: true,
	},
	{
		name: "negative_repeat",
		ext:  ".toml",
		data: `
[[animation]]
row = 0
col = 0
frames = ["a.png"]
period_ms = 100
repeat = -1
`,
		wantErr: true,
	},
	{
		name: "negative_row",
		ext:  ".toml",
		data: `
[[animation]]
row = -1
col = 0
frames = ["a.png"]
period_ms = 100
`,
		wantErr: true,
	},
	{
		name: "frames_without_period",
		ext:  ".toml",
		data: `
[[animation]]
row = 0
col = 0
frames = ["a.png"]
`,
		wantErr: true,
	},
	{
		name: "frames_and_gif",
		ext:  ".toml",
		data: `
[[animation]]
row = 0
col = 0
frames = ["a.png"]
gif = "b.gif"
period_ms = 100
`,
		wantErr: true,
	},
	{
		name: "no_source",
		ext:  ".toml",
		data: `
[[animation]]
row = 0
col = 0
`,
		wantErr: true,
	},
	{
		name: "duplicate_button",
		ext:  ".toml",
		data: `
[[animation]]
row = 0
col = 0
gif = "a.gif"

[[animation]]
row = 0
col = 0
gif = "b.gif"
`,
		wantErr: true,
	},
	{
		name: "yaml_unknown_field",
		ext:  ".yaml",
		data: `
animations:
  - row: 0
`,
		wantErr: true,
	},
}

func TestUnmarshal(t *testing.T) {
	for _, test := range unmarshalTests {
		t.Run(test.name, func(t *testing.T) {
			got, _, err := Unmarshal(test.ext, []byte(test.data))
			if (err != nil) != test.wantErr {
				t.Fatalf("unexpected error: got:%v want error:%t", err, test.wantErr)
			}
			if err != nil {
				return
			}
			if !cmp.Equal(test.want, got) {
				t.Errorf("unexpected config:\n--- want:\n+++ got:\n%s", cmp.Diff(test.want, got))
			}
		})
	}
}

func TestSum(t *testing.T) {
	_, a, err := Unmarshal(".toml", []byte(`[[animation]]
row = 0
col = 1
gif = "a.gif"
`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, b, err := Unmarshal(".yaml", []byte(`animation: [{row: 0, col: 1, gif: a.gif}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a != b {
		t.Errorf("semantically equal configs have different sums: %s != %s", a, b)
	}
	_, c, err := Unmarshal(".yaml", []byte(`animation: [{row: 1, col: 1, gif: a.gif}]`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a == c {
		t.Errorf("different configs have the same sum: %s", a)
	}
}

func TestValidatePaths(t *testing.T) {
	cfg := Config{
		Device: Device{Brightness: ptr(101)},
	}
	paths, err := Validate(Schema, cfg)
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
	want := [][]string{{"device", "brightness"}}
	if !cmp.Equal(want, paths) {
		t.Errorf("unexpected invalid paths:\n--- want:\n+++ got:\n%s", cmp.Diff(want, paths))
	}
}

func TestUnique(t *testing.T) {
	got := unique([][]string{
		{"b"},
		{"a", "b"},
		{"a"},
		{"b"},
		{"a", "b"},
	})
	want := [][]string{{"a"}, {"a", "b"}, {"b"}}
	if !cmp.Equal(want, got) {
		t.Errorf("unexpected result:\n--- want:\n+++ got:\n%s", cmp.Diff(want, got))
	}
}

func TestBackgroundColor(t *testing.T) {
	for _, test := range []struct {
		background string
		want       color.RGBA
		wantErr    bool
	}{
		{background: "", want: color.RGBA{A: 0xff}},
		{background: "#ff8000", want: color.RGBA{R: 0xff, G: 0x80, A: 0xff}},
		{background: "#zzzzzz", wantErr: true},
	} {
		got, err := Device{Background: test.background}.BackgroundColor()
		if (err != nil) != test.wantErr {
			t.Errorf("unexpected error for %q: %v", test.background, err)
			continue
		}
		if err != nil {
			continue
		}
		rgba := color.RGBAModel.Convert(got).(color.RGBA)
		if rgba != test.want {
			t.Errorf("unexpected color for %q: got:%v want:%v", test.background, rgba, test.want)
		}
	}
}

func TestAnimationLabel(t *testing.T) {
	for _, test := range []struct {
		anim Animation
		want string
	}{
		{anim: Animation{Name: "spinner", Row: 1, Col: 2}, want: "spinner"},
		{anim: Animation{Row: 1, Col: 2}, want: "1,2"},
	} {
		got := test.anim.Label()
		if got != test.want {
			t.Errorf("unexpected label: got:%q want:%q", got, test.want)
		}
	}
}
