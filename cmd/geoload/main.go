package main

import (
	"fmt"
	"os"
	"runtime/debug"

	"github.com/vvka-141/geoload/internal/cli"
	"github.com/vvka-141/geoload/pkg/geoload"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "panic: %v\n%s\n", r, debug.Stack())
			os.Exit(geoload.ExitPanic)
		}
	}()

	if os.Getenv("GEOLOAD_TEST_PANIC") == "1" {
		panic("intentional test panic")
	}

	if err := cli.Execute(); err != nil {
		os.Exit(geoload.ExitCodeForError(err))
	}
}
