// The main package for the sitegauge executable.
package main

import (
	"github.com/sitegauge/sitegauge/cmd"
)

func main() {
	cmd.Execute()
}
