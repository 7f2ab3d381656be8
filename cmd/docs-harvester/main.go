package main

import (
	cmd "github.com/rohmanhakim/docs-harvester/internal/cli"
)

func main() {
	cmd.Execute()
}
