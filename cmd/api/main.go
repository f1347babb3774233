package main

import (
	"os"

	"github.com/Funclose/Ef-HomeWork/internal/app"
	"github.com/Funclose/Ef-HomeWork/internal/cli"
	"github.com/Funclose/Ef-HomeWork/internal/config"
)

func main() {
	path := os.Getenv(cli.ConfigEnv)
	if path == "" {
		path = config.DefaultPath
	}
	app.New(config.Source{Path: path}, app.Module, app.Logged).Run()
}
