package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cppla/yatube/storage"
	"github.com/cppla/yatube/utils"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userDeleteCmd = &cobra.Command{
	Use:   "delete <username>",
	Short: "Delete an account with its posts, comments and follows",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := setup()
		if err != nil {
			return err
		}
		defer e.Close()

		ctx := commandContext(cmd)
		user, err := e.store.UserByUsername(ctx, args[0])
		if err != nil {
			return fmt.Errorf("user %q: %w", args[0], err)
		}
		images, err := e.store.DeleteUser(ctx, user.ID)
		if err != nil {
			return err
		}

		if len(images) > 0 {
			media, err := storage.New(ctx, e.cfg)
			if err != nil {
				return err
			}
			for _, key := range images {
				if err := media.Delete(ctx, key); err != nil {
					utils.Logger.Warn("remove image failed", zap.String("key", key), zap.Error(err))
				}
			}
		}
		cmd.Printf("user %q deleted with %d images\n", user.Username, len(images))
		return nil
	},
}

func init() {
	userCmd.AddCommand(userDeleteCmd)
}
