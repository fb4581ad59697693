// The main package for the opportunity-pipeline executable.
package main

import (
	"github.com/shubhamdixena/opportunity-pipeline/cmd"
)

func main() {
	cmd.Execute()
}
