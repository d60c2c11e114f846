package main

import (
	"os"

	"stepflow/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
