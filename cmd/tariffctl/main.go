// tariffctl runs the tariff engine against the sample catalog and patient roster.
//
// Usage:
//
//	tariffctl items
//	tariffctl patients
//	tariffctl evaluate --tariff middle-aged-man --patient Chalermpon --at 2021-12-15T09:00:00Z
//	tariffctl validate --tariff tariffs.yaml
package main

import (
	"os"

	"github.com/urfave/cli/v2"

	"github.com/liamcoop/tariffs/internal/logger"
)

var version = "dev"

func newApp() *cli.App {
	return &cli.App{
		Name:    "tariffctl",
		Usage:   "Evaluate and validate clinic tariffs",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Value:   "info",
				Usage:   "Log level (debug, info, warn, error)",
				EnvVars: []string{"TARIFFS_LOG_LEVEL"},
			},
		},
		Before: func(c *cli.Context) error {
			return logger.Init("development", c.String("log-level"))
		},
		Commands: []*cli.Command{
			itemsCommand(),
			patientsCommand(),
			evaluateCommand(),
			validateCommand(),
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		logger.Fatal("tariffctl failed", "error", err)
	}
}
