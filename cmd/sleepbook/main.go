package main

import (
	"os"

	"github.com/sleepbook/sleepbook/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
