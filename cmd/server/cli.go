package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli"

	"github.com/Nixie-Tech-LLC/platter/internal/backup"
	"github.com/Nixie-Tech-LLC/platter/internal/config"
	"github.com/Nixie-Tech-LLC/platter/internal/db"
)

// Execute runs the command line with args (including the program name).
func Execute(args []string) error {
	app := cli.App{
		Name:      "platter",
		HelpName:  "platter",
		Usage:     "menu availability scheduler",
		Version:   version,
		UsageText: "platter [command] [arguments...]",
		Action:    serve,
		Flags:     serveFlags,
		Commands: []cli.Command{
			{
				Name:   "serve",
				Usage:  "run the admin API and the scheduler (default)",
				Action: serve,
				Flags:  serveFlags,
			},
			{
				Name:   "migrate",
				Usage:  "apply database migrations and exit",
				Action: migrate,
			},
			{
				Name:    "schedules",
				Aliases: []string{"ls"},
				Usage:   "print every schedule with its status",
				Action:  listSchedules,
			},
			{
				Name:   "backup",
				Usage:  "write one snapshot of all collections",
				Action: runBackup,
			},
		},
	}
	return app.Run(args)
}

var serveFlags = []cli.Flag{
	cli.StringFlag{
		Name:  "addr",
		Usage: "listen address, overrides SERVER_ADDRESS",
	},
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	config.SetupLogging(cfg.LogLevel, cfg.Environment)
	return cfg, nil
}

func migrate(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.StorageDriver == config.DriverJSON {
		log.Info().Msg("json storage has no migrations")
		return nil
	}
	if err := db.Init(cfg.StorageDriver, cfg.DatabaseURL); err != nil {
		return err
	}
	defer db.DB.Close()
	return db.RunMigrations(db.DB, cfg.MigrationsPath)
}

func listSchedules(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	schedules, err := store.ListSchedules(context.Background())
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tSTATUS\tRECURRENCE\tSTART\tEND\tERROR")
	for _, s := range schedules {
		msg := ""
		if s.ErrorMessage != nil {
			msg = *s.ErrorMessage
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, s.Status, s.Recurrence,
			s.StartTime.Format(time.RFC3339), s.EndTime.Format(time.RFC3339), msg)
	}
	return w.Flush()
}

func runBackup(c *cli.Context) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	dst, err := initBackupStorage(cfg)
	if err != nil {
		return err
	}
	loc, err := backup.Run(context.Background(), store, dst)
	if err != nil {
		return err
	}
	fmt.Println(loc)
	return nil
}
