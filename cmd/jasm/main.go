// jasm assembles and verifies JVM method bodies.
package main

import (
	"os"

	"github.com/tebeka/atexit"
)

func main() {
	atexit.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}
