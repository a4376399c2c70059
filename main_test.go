// Copyright ©2023 Dan Kortschak. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package main

import (
	"flag"
	"fmt"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/rogpeppe/go-internal/gotooltest"
	"github.com/rogpeppe/go-internal/testscript"
	"golang.org/x/sys/unix"
)

var (
	update = flag.Bool("update", false, "update tests")
	keep   = flag.Bool("keep", false, "keep $WORK directory after tests")
)

func TestMain(m *testing.M) {
	os.Exit(testscript.RunMain(m, map[string]func() int{
		"animimg": Main,
	}))
}

func TestScripts(t *testing.T) {
	t.Parallel()

	p := testscript.Params{
		Dir:           filepath.Join("testdata"),
		UpdateScripts: *update,
		TestWork:      *keep,
		Cmds: map[string]func(ts *testscript.TestScript, neg bool, args []string){
			"mkpng":  mkpng,
			"count":  count,
			"sleep":  sleep,
			"signal": sendSignal,
		},
	}
	if err := gotooltest.Setup(&p); err != nil {
		t.Fatal(err)
	}
	testscript.Run(t, p)
}

func sleep(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! sleep")
	}
	if len(args) != 1 {
		ts.Fatalf("usage: sleep duration")
	}
	d, err := time.ParseDuration(args[0])
	ts.Check(err)
	time.Sleep(d)
}

// mkpng writes a uniform 16x16 PNG image in the given #rrggbb color.
func mkpng(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! mkpng")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: mkpng file #rrggbb")
	}
	col, err := colorful.Hex(args[1])
	ts.Check(err)
	img := image.NewRGBA(image.Rect(0, 0, 16, 16))
	for y := range 16 {
		for x := range 16 {
			img.Set(x, y, col)
		}
	}
	f, err := os.Create(ts.MkAbs(args[0]))
	ts.Check(err)
	ts.Check(png.Encode(f, img))
	ts.Check(f.Close())
}

// count checks the number of lines in a file matching a pattern.
func count(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! count")
	}
	if len(args) != 3 {
		ts.Fatalf("usage: count n pattern file")
	}
	var want int
	_, err := fmt.Sscan(args[0], &want)
	ts.Check(err)
	re, err := regexp.Compile("(?m)" + args[1])
	ts.Check(err)
	data, err := os.ReadFile(ts.MkAbs(args[2]))
	ts.Check(err)
	got := len(re.FindAll(data, -1))
	if got != want {
		ts.Logf("[count]\n%s\n", data)
		ts.Fatalf("unexpected number of matches for %#q: got:%d want:%d", args[1], got, want)
	}
}

// sendSignal sends the named signal to the process whose pid is held in
// the given pid file.
func sendSignal(ts *testscript.TestScript, neg bool, args []string) {
	if neg {
		ts.Fatalf("unsupported: ! signal")
	}
	if len(args) != 2 {
		ts.Fatalf("usage: signal USR1|USR2 pidfile")
	}
	var sig unix.Signal
	switch args[0] {
	case "USR1":
		sig = unix.SIGUSR1
	case "USR2":
		sig = unix.SIGUSR2
	default:
		ts.Fatalf("unsupported signal: %s", args[0])
	}
	b, err := os.ReadFile(ts.MkAbs(args[1]))
	ts.Check(err)
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	ts.Check(err)
	ts.Check(unix.Kill(pid, sig))
}
