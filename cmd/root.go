// Package cmd is the yatube command line: the HTTP server plus the operator
// tasks that would otherwise need an admin site.
package cmd

import (
	"context"

	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/repository"
	"github.com/cppla/yatube/utils"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:           "yatube",
	Short:         "Yatube, a small blogging platform",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", config.DefaultPath, "path to the JSON config file")
	rootCmd.AddCommand(serveCmd, migrateCmd, groupCmd, cacheCmd, userCmd)
}

// Execute runs the command line with os.Args.
func Execute() error {
	return rootCmd.Execute()
}

// env is what every subcommand starts from.
type env struct {
	cfg   config.AppConfig
	db    *gorm.DB
	store *repository.Store
}

func (e *env) Close() error {
	defer func() { _ = utils.Logger.Sync() }()
	if e.db == nil {
		return nil
	}
	sqlDB, err := e.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// setup loads the configuration, starts logging and opens the database.
func setup() (*env, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	if err := utils.InitLogger(cfg); err != nil {
		return nil, err
	}
	db, err := config.InitDatabase(cfg)
	if err != nil {
		return nil, err
	}
	return &env{cfg: cfg, db: db, store: repository.New(db)}, nil
}

func commandContext(cmd *cobra.Command) context.Context {
	if ctx := cmd.Context(); ctx != nil {
		return ctx
	}
	return context.Background()
}
