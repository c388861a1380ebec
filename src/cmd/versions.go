package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/loonghao/msvc-kit/src/internal/kitdir"
	"github.com/loonghao/msvc-kit/src/internal/pipeline"
)

var versionsInstallRoot string

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "List MSVC and Windows SDK builds advertised by the current channel",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmdContext()

		installRoot := versionsInstallRoot
		if installRoot == "" {
			var err error
			installRoot, err = kitdir.Home()
			if err != nil {
				return err
			}
		}

		pl, err := pipeline.New(pipeline.Options{
			ChannelURL:  viper.GetString("channel.url"),
			InstallRoot: installRoot,
		})
		if err != nil {
			return err
		}
		defer pl.Close()

		msvc, sdk, err := pl.ListAvailableVersions(ctx)
		if err != nil {
			return err
		}

		fmt.Println("MSVC:")
		for _, v := range msvc {
			fmt.Println("  " + v)
		}
		fmt.Println("Windows SDK:")
		for _, v := range sdk {
			fmt.Println("  " + v)
		}
		return nil
	},
}

func init() {
	versionsCmd.Flags().StringVar(&versionsInstallRoot, "install-root", "", "install root whose manifest cache should be consulted")
	rootCmd.AddCommand(versionsCmd)
}
