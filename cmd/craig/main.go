package main

import (
	"github.com/olemoy/craigpy/internal/cli"
)

func main() {
	cli.Execute()
}
