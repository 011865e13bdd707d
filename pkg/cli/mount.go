package cli

import (
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var noUnmount bool

var mountCmd = &cobra.Command{
	Use:   "mount",
	Short: "Mount every layer of the cloud drive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}

		ctx := signalContext()
		if !noUnmount {
			if err := a.mounts.Release(ctx, a.target); err != nil {
				log.Warn().Err(err).Msg("unmount before mounting reported errors")
			}
		}
		return a.mounts.EnsureReady(ctx, a.target)
	},
}

var unmountCmd = &cobra.Command{
	Use:   "unmount",
	Short: "Unmount every layer of the cloud drive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}
		return a.mounts.Release(signalContext(), a.target)
	},
}

func init() {
	mountCmd.Flags().BoolVar(&noUnmount, "no-unmount", false, "do not unmount before mounting")
	rootCmd.AddCommand(mountCmd)
	rootCmd.AddCommand(unmountCmd)
}
