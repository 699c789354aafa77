package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/controllers"
	"github.com/cppla/yatube/routes"
	"github.com/cppla/yatube/storage"
	"github.com/cppla/yatube/templates"
	"github.com/cppla/yatube/utils"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Migrate the database and run the HTTP server",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := config.Migrate(e.db); err != nil {
			return err
		}

		ctx := commandContext(cmd)
		store, err := cache.New(ctx, e.cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		images, err := storage.New(ctx, e.cfg)
		if err != nil {
			return err
		}
		pages, err := templates.New(images.URL)
		if err != nil {
			return err
		}

		r := routes.SetupRouter(controllers.Services{
			Config: e.cfg,
			Store:  e.store,
			Cache:  store,
			Images: images,
			Pages:  pages,
			Mailer: utils.NewSMTPMailer(e.cfg),
		})

		utils.Sugar.Infof("Starting server on port %s (graceful)", e.cfg.AppPort)
		return utils.GraceServer(":"+e.cfg.AppPort, r)
	},
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or upgrade the database tables",
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		if err := config.Migrate(e.db); err != nil {
			return err
		}
		cmd.Println("migrations applied")
		return nil
	},
}
