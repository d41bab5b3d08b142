package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/rybkr/sumtree/internal/cli"
	"github.com/rybkr/sumtree/internal/termcolor"
)

// Build-time variables set via -ldflags.
var (
	version   = "dev"
	commit    = "unknown"
	buildDate = "unknown"
)

const ghRepo = "rybkr/sumtree"

func main() {
	gf, args := parseGlobalFlags(os.Args[1:])

	// --version is handled before app.Run because "--" prefixed args
	// would be treated as unknown commands by the dispatcher.
	for _, a := range args {
		if a == "--version" {
			printVersion()
			os.Exit(0)
		}
	}

	cw := termcolor.NewWriter(os.Stdout, gf.colorMode)

	app := cli.NewApp("sumtree", version)
	app.Stderr = os.Stderr

	app.Register(&cli.Command{
		Name:    "scan",
		Summary: "Hash a directory tree into a sum file",
		Usage:   "sumtree scan <root> -o <out.sum> [-hash sha256|blake3] [-drive ssd|hdd] [-progress]",
		Examples: []string{
			"sumtree scan ./data -o data.sum",
			"sumtree scan ./data -o data.sum -hash blake3 -progress",
		},
		Run: func(args []string) int { return runScan(args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "diff",
		Summary: "Compare two sum files and report drift",
		Usage:   "sumtree diff <old.sum> <new.sum> [-filter substr] [-report markdown|html] [-out file]",
		Examples: []string{
			"sumtree diff old.sum new.sum",
			"sumtree diff old.sum new.sum -report markdown -out drift.md",
		},
		Run: func(args []string) int { return runDiff(args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "verify",
		Summary: "Rescan a directory and report drift against a sum file",
		Usage:   "sumtree verify <root> <baseline.sum> [-filter substr] [-report markdown|html] [-out file]",
		Examples: []string{
			"sumtree verify ./data baseline.sum",
		},
		Run: func(args []string) int { return runVerify(args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "dupes",
		Summary: "Find duplicate-content files within a sum file",
		Usage:   "sumtree dupes <sum-file> [-min N] [-cache path]",
		Examples: []string{
			"sumtree dupes data.sum",
			"sumtree dupes data.sum -cache ~/.cache/sumtree/dupes.db",
		},
		Run: func(args []string) int { return runDupes(args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "serve",
		Summary: "Run the scan-job HTTP API and live progress feed",
		Usage:   "sumtree serve [-addr :8080] [-data-dir dir] [-max-scans N]",
		Examples: []string{
			"sumtree serve -addr :8080",
		},
		Run: func(args []string) int { return runServe(args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "watch",
		Summary: "Rescan a directory on every change and keep a sum file current",
		Usage:   "sumtree watch <root> -o <out.sum> [-debounce 200ms] [-hash sha256|blake3]",
		Examples: []string{
			"sumtree watch ./data -o data.sum",
		},
		Run: func(args []string) int { return runWatch(args, cw) },
	})

	app.Register(&cli.Command{
		Name:    "update",
		Summary: "Update to the latest release",
		Usage:   "sumtree update [--check]",
		Examples: []string{
			"sumtree update",
			"sumtree update --check",
		},
		Run: func(args []string) int { return runUpdate(args) },
	})

	app.Register(&cli.Command{
		Name:    "version",
		Summary: "Show version information",
		Usage:   "sumtree version",
		Run:     func([]string) int { printVersion(); return 0 },
	})

	os.Exit(app.Run(args, cw))
}

func printVersion() {
	fmt.Printf("sumtree %s\n", version)
	fmt.Printf("  commit:     %s\n", commit)
	fmt.Printf("  built:      %s\n", buildDate)
	fmt.Printf("  go version: %s\n", runtime.Version())
	fmt.Printf("  platform:   %s/%s\n", runtime.GOOS, runtime.GOARCH)
}
