package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cppla/yatube/cache"
	"github.com/cppla/yatube/config"
	"github.com/cppla/yatube/utils"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the page cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop every cached page and token",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := config.Load(configPath)
		if err != nil {
			return err
		}
		if err := utils.InitLogger(cfg); err != nil {
			return err
		}
		if cfg.CacheBackend == "memory" {
			cmd.Println("memory cache lives inside the server process; restart it to clear")
			return nil
		}

		ctx := commandContext(cmd)
		store, err := cache.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()
		if err := store.Clear(ctx); err != nil {
			return err
		}
		cmd.Println("cache cleared")
		return nil
	},
}

func init() {
	cacheCmd.AddCommand(cacheClearCmd)
}
