/*
Copyright © 2025 Acronis International GmbH.

Released under MIT license.
*/

// Command quotakitd serves market quotes through a TTL request cache and enforces per-user quotas
// over a sliding window.
package main

import (
	"errors"
	"fmt"
	"io/fs"
	golog "log"
	"os"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"

	"github.com/acronis/go-quotakit/config"
	"github.com/acronis/go-quotakit/log"
)

const defaultEnvFile = ".env"

func main() {
	if err := newCLIApp().Run(os.Args); err != nil {
		golog.Fatal(err)
	}
}

func newCLIApp() *cli.App {
	configFlag := &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Usage:   "path to a YAML or JSON configuration file",
		EnvVars: []string{"QUOTAKIT_CONFIG"},
	}
	return &cli.App{
		Name:  "quotakitd",
		Usage: "market quotes edge with per-user quotas",
		Flags: []cli.Flag{
			configFlag,
			&cli.StringSliceFlag{
				Name:  "env-file",
				Usage: "dotenv files to load before reading the configuration",
				Value: cli.NewStringSlice(defaultEnvFile),
			},
		},
		Before: loadEnvFiles,
		Action: runServe,
		Commands: []*cli.Command{
			{
				Name:   "check-config",
				Usage:  "validate the configuration and exit",
				Action: runCheckConfig,
			},
		},
	}
}

// loadEnvFiles loads dotenv files. A missing default file is not an error.
func loadEnvFiles(c *cli.Context) error {
	for _, path := range c.StringSlice("env-file") {
		if err := godotenv.Load(path); err != nil {
			if errors.Is(err, fs.ErrNotExist) && path == defaultEnvFile {
				continue
			}
			return fmt.Errorf("load env file %s: %w", path, err)
		}
	}
	return nil
}

func runServe(c *cli.Context) error {
	cfg, err := loadAppConfig(config.NewDefaultLoader(envVarsPrefix), c.String("config"))
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, loggerClose := log.NewLogger(cfg.Log)
	defer loggerClose()

	a, err := newApp(c.Context, cfg, logger)
	if err != nil {
		logger.Error("failed to initialize application", log.Error(err))
		return err
	}
	return a.run(c.Context)
}

func runCheckConfig(c *cli.Context) error {
	if _, err := loadAppConfig(config.NewDefaultLoader(envVarsPrefix), c.String("config")); err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	_, err := fmt.Fprintln(c.App.Writer, "configuration is valid")
	return err
}
