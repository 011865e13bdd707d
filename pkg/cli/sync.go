package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var uploadCmd = &cobra.Command{
	Use:   "upload",
	Short: "Upload local changes to the cloud drive",
	Long: `upload reconciles pending deletions, copies the local encrypted
branch to the cloud drive, and then reclaims stale cache entries.
Overlapping runs are refused.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}
		return a.uploader().Upload(signalContext())
	},
}

var syncDeletesCmd = &cobra.Command{
	Use:   "sync-deletes",
	Short: "Reflect local deletions on the cloud drive",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}
		return a.uploader().SyncDeletes(signalContext())
	},
}

var showEncodedPathCmd = &cobra.Command{
	Use:   "show-encoded-path <path>",
	Short: "Print the encrypted form of a plaintext path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := loadApp()
		if err != nil {
			return err
		}
		if err := a.checkDependencies(); err != nil {
			return err
		}

		encoded, err := a.encfs.EncodeName(signalContext(), a.target.RemoteEncryptedPath(), args[0])
		if err != nil {
			return err
		}
		fmt.Println(encoded)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(uploadCmd)
	rootCmd.AddCommand(syncDeletesCmd)
	rootCmd.AddCommand(showEncodedPathCmd)
}
