/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"bannerforge/internal/config"
	"bannerforge/internal/crash"
	applog "bannerforge/internal/log"
	"bannerforge/internal/storage"
	"bannerforge/internal/version"
)

func usage(w io.Writer) {
	_, _ = fmt.Fprintln(w, "BannerForge template editor")
	_, _ = fmt.Fprintf(w, "Version: %s\n", version.String())
	_, _ = fmt.Fprintln(w)
	_, _ = fmt.Fprintln(w, "Usage:")
	_, _ = fmt.Fprintln(w, "  bannerforge version|-v|--version          Show version")
	_, _ = fmt.Fprintln(w, "  bannerforge new <file> <w> <h> [name]     Create a template with a w x h frame")
	_, _ = fmt.Fprintln(w, "  bannerforge info <file>                   Print the template and its layers")
	_, _ = fmt.Fprintln(w, "  bannerforge add-text <file> <text>        Add a text layer and save")
	_, _ = fmt.Fprintln(w, "  bannerforge ratio <file> <w> <h>          Resize the frame to w x h, keeping its center")
	_, _ = fmt.Fprintln(w, "  bannerforge ratio <file> <preset>         Switch the frame to a preset (1:1, 4:5, 9:16, 16:9, 1:2, 3:1)")
	_, _ = fmt.Fprintln(w, "  bannerforge align <file> <id> <mode>      Align a layer to the frame (left|center|right|top|middle|bottom)")
	_, _ = fmt.Fprintln(w, "  bannerforge validate <file>               Check the scene against the import schema")
	_, _ = fmt.Fprintln(w, "  bannerforge history <file>                List recorded revisions")
	_, _ = fmt.Fprintln(w, "  bannerforge fonts                         List available font families")
}

func main() {
	if code := run(os.Args[1:], os.Stdout); code != 0 {
		os.Exit(code)
	}
}

// run executes one CLI command and returns the process exit code.
func run(args []string, out io.Writer) int {
	cfg, secret, err := config.Load()
	if err != nil {
		_, _ = fmt.Fprintln(os.Stderr, "config:", err)
	}
	applog.Init(applog.Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		AddSource: cfg.Logging.Source,
		File:      cfg.Logging.File,
	})
	l := applog.WithComponent("cli")

	a := &app{cfg: cfg, secret: secret, out: out, log: l}
	defer crash.Recover(a.current)
	defer a.close()

	l.Debug("start", slog.Int("args", len(args)))
	if len(args) == 0 {
		usage(out)
		return 0
	}
	need := func(n int, what string) bool {
		if len(args)-1 < n {
			_, _ = fmt.Fprintf(out, "%s requires %s\n", args[0], what)
			usage(out)
			return false
		}
		return true
	}

	switch args[0] {
	case "version", "--version", "-v":
		_, _ = fmt.Fprintln(out, "BannerForge")
		_, _ = fmt.Fprintln(out, version.String())
		return 0
	case "new":
		if !need(3, "<file> <w> <h>") {
			return 2
		}
		name := ""
		if len(args) > 4 {
			name = args[4]
		}
		err = a.cmdNew(args[1], args[2], args[3], name)
	case "info":
		if !need(1, "<file>") {
			return 2
		}
		err = a.cmdInfo(args[1])
	case "add-text":
		if !need(2, "<file> <text>") {
			return 2
		}
		err = a.cmdAddText(args[1], args[2])
	case "ratio":
		if !need(2, "<file> <w> <h> or <file> <preset>") {
			return 2
		}
		err = a.cmdRatio(args[1], args[2:])
	case "align":
		if !need(3, "<file> <id> <mode>") {
			return 2
		}
		err = a.cmdAlign(args[1], args[2], args[3])
	case "validate":
		if !need(1, "<file>") {
			return 2
		}
		err = a.cmdValidate(args[1])
	case "history":
		if !need(1, "<file>") {
			return 2
		}
		err = a.cmdHistory(args[1])
	case "fonts":
		err = a.cmdFonts()
	default:
		usage(out)
		return 2
	}
	if err != nil {
		l.Error("command failed", slog.String("cmd", args[0]), slog.Any("err", err))
		_, _ = fmt.Fprintln(out, "Error:", err)
		return 1
	}
	return 0
}

// current is the crash hook: the open document with the live scene written into it.
func (a *app) current() *storage.DocumentHandle {
	if a.session == nil {
		return nil
	}
	h, err := a.session.Document()
	if err != nil {
		return a.session.Handle()
	}
	return h
}
