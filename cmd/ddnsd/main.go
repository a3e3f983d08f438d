// Command ddnsd is the dynamic DNS daemon entrypoint. It wires
// configuration, logging, the subsystem registry, and the engine
// together, the same role the teacher's main() played, split into a
// cobra command the way cldmnky-oooi structures its own entrypoint.
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitCodeFor(err))
	}
}
