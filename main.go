package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/meridian-synth/navroam/internal/version"
)

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: navroam <command> [flags]

Commands:
  generate   run the full pipeline for a scene and write a trajectory plan
  analyze    run connectivity analysis only and print component sizes
  cache      inspect or clear the connectivity result cache
  version    print build information

Run "navroam <command> -h" for command flags.
`)
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "generate":
		err = runGenerate(ctx, os.Args[2:])
	case "analyze":
		err = runAnalyze(ctx, os.Args[2:])
	case "cache":
		err = runCache(os.Args[2:])
	case "version":
		fmt.Printf("navroam %s (%s, built %s)\n", version.Version, version.GitSHA, version.BuildTime)
	case "-h", "--help", "help":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "navroam %s: %v\n", os.Args[1], err)
		os.Exit(1)
	}
}
