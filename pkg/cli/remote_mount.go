package cli

import (
	"context"
	"errors"

	"github.com/spf13/cobra"

	"github.com/cloud-drive-tools/cdt/pkg/mount"
)

var remoteMountCmd = &cobra.Command{
	Use:   "remote-mount",
	Short: "Run the remote mount supervisor in the foreground",
	Long: `remote-mount keeps the rclone FUSE mount of the remote ciphertext
alive, remounting whenever it exits, until an unmount is requested. The
mount command starts this as a detached child; running it by hand is
mostly useful for debugging.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}

		sup := mount.NewSupervisor(a.cfg, a.runner, a.prober)
		if err := sup.Run(signalContext()); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(remoteMountCmd)
}
