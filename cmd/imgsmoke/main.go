// Command imgsmoke is the smoke test for the image library. It exits 0 when
// both checks pass and 1 otherwise, printing the error type and message to
// stderr.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/deixis/verdict/internal/smoke"
)

func main() {
	os.Exit(run(".", os.Stdout, os.Stderr))
}

func run(dir string, stdout, stderr io.Writer) int {
	if err := smoke.Run(dir, stdout); err != nil {
		fmt.Fprintln(stderr, "--- Smoke Test: FAILED ---")
		fmt.Fprintf(stderr, "Error during smoke test: %T - %v\n", err, err)
		return 1
	}
	return 0
}
