// Command zoro-args flattens a batch document into the felt argument
// array the Cairo runner consumes.
//
// Example: zoro-args -input batch.json -output arguments.json
package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"zoro.dev/client/cairoserde"
)

func main() {
	inputFile := flag.String("input", "", "batch JSON file (stdin when empty)")
	outputFile := flag.String("output", "", "argument file (stdout when empty)")
	flag.Parse()

	var raw []byte
	var err error
	if *inputFile == "" {
		raw, err = io.ReadAll(os.Stdin)
	} else {
		raw, err = os.ReadFile(*inputFile)
	}
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "input read failed: %v\n", err)
		os.Exit(2)
	}

	value, err := cairoserde.ParseJSON(raw)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "input parse failed: %v\n", err)
		os.Exit(1)
	}
	out, err := cairoserde.FormatArgs(value)
	if err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "argument encoding failed: %v\n", err)
		os.Exit(1)
	}
	out = append(out, '\n')

	if *outputFile == "" {
		_, _ = os.Stdout.Write(out)
		return
	}
	if err := os.WriteFile(*outputFile, out, 0o600); err != nil {
		_, _ = fmt.Fprintf(os.Stderr, "output write failed: %v\n", err)
		os.Exit(1)
	}
}
