package main

import (
	"os"

	"github.com/Funclose/Ef-HomeWork/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
