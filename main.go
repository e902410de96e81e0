// The main package for the sitescribe executable.
package main

import (
	"github.com/tbaxter/sitescribe/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
