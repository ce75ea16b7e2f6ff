package main

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/afero"

	"github.com/Nixie-Tech-LLC/platter/internal/config"
	"github.com/Nixie-Tech-LLC/platter/internal/db"
	"github.com/Nixie-Tech-LLC/platter/internal/storage"
)

// openStore connects the configured storage gateway. SQL drivers are
// migrated on open.
func openStore(cfg *config.Config) (db.Store, error) {
	switch cfg.StorageDriver {
	case config.DriverPostgres, config.DriverSQLite:
		if err := db.Init(cfg.StorageDriver, cfg.DatabaseURL); err != nil {
			return nil, err
		}
		if err := db.RunMigrations(db.DB, cfg.MigrationsPath); err != nil {
			db.DB.Close()
			return nil, err
		}
		return db.NewStore(db.DB), nil
	default:
		log.Info().Str("dir", cfg.DataDir).Msg("Using JSON file storage")
		return db.NewJSONStore(afero.NewOsFs(), cfg.DataDir)
	}
}

// initBackupStorage selects and returns the configured backup destination
func initBackupStorage(cfg *config.Config) (storage.Storage, error) {
	if cfg.UseSpaces {
		spacesStorage, err := storage.NewSpacesStorage(
			cfg.SpacesEndpoint,
			cfg.SpacesRegion,
			cfg.SpacesBucket,
			cfg.SpacesPrefix,
			cfg.SpacesAccessKey,
			cfg.SpacesSecretKey,
		)
		if err != nil {
			return nil, err
		}
		log.Info().Str("bucket", cfg.SpacesBucket).Msg("Using DigitalOcean Spaces for backups")
		return spacesStorage, nil
	}

	log.Info().Str("dir", cfg.BackupDir).Int("max_count", cfg.Settings.Backup.MaxCount).Msg("Using local backup storage")
	return storage.NewLocalStorage(afero.NewOsFs(), cfg.BackupDir, cfg.Settings.Backup.MaxCount), nil
}
