//go:build mage
// +build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

// Default target to run when none is specified
var Default = Build

// Build compiles every executable into ./bin.
func Build() error {
	mg.Deps(BuildBinner)
	fmt.Println("Compilation finished")
	return nil
}

func BuildBinner() error {
	fmt.Println("Building binner executable...")
	return goCommand("build", "-o", "./bin/binner", "./binner")
}

// Test runs the unit tests of every package. HDF5 tests need the same cgo
// flags as the build.
func Test() error {
	fmt.Println("Running tests...")
	return goCommand("test", "./...")
}

// goCommand runs the go tool with the HDF5 cgo flags forwarded.
func goCommand(args ...string) error {
	ldflags := os.Getenv("CGO_LDFLAGS")
	cflags := os.Getenv("CGO_CFLAGS")
	cmd := exec.Command("go", args...)
	cmd.Env = append(os.Environ(),
		"CGO_ENABLED=1",
		fmt.Sprintf("CGO_LDFLAGS=%s", ldflags),
		fmt.Sprintf("CGO_CFLAGS=%s", cflags))
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
