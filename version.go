package main

import (
	"fmt"

	"github.com/smeltjs/smelt/internal/version"
)

// printVersion writes the injected version and commit.
func printVersion() {
	fmt.Fprintln(stdOut, version.Full())
}
