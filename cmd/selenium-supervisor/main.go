package main

import (
	"os"

	"github.com/GeneArguelles/selenium-mcp/cmd/selenium-supervisor/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
