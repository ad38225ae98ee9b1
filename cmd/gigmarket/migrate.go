package main

import (
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"

	"gigmarket/internal/migrations"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "apply or roll back database migrations",
		Subcommands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: func(c *cli.Context) error {
					cfg, log, err := bootstrap(c)
					if err != nil {
						return err
					}
					if err := migrations.Up(cfg.DB.DSN); err != nil {
						return err
					}
					log.Info("migrations applied")
					return nil
				},
			},
			{
				Name:  "down",
				Usage: "roll back migrations",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "steps", Value: 1, Usage: "number of migrations to roll back"},
				},
				Action: func(c *cli.Context) error {
					cfg, log, err := bootstrap(c)
					if err != nil {
						return err
					}
					if err := migrations.Down(cfg.DB.DSN, c.Int("steps")); err != nil {
						return err
					}
					log.WithField("steps", c.Int("steps")).Info("migrations rolled back")
					return nil
				},
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: func(c *cli.Context) error {
					cfg, log, err := bootstrap(c)
					if err != nil {
						return err
					}
					v, dirty, err := migrations.Version(cfg.DB.DSN)
					if err != nil {
						return err
					}
					log.WithFields(logrus.Fields{"version": v, "dirty": dirty}).Info("schema version")
					return nil
				},
			},
		},
	}
}
