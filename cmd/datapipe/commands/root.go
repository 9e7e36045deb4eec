package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"oceanworks.io/datapipe/internal/config"
	"oceanworks.io/datapipe/pkg/logx"
)

var (
	// Used for flags.
	flagConfig string

	rootCmd = &cobra.Command{
		Use:   "datapipe",
		Short: "Scientific data file ingestion pipeline",
		Long:  "Datapipe - resolve, check, harvest and store scientific data files",
	}
)

// Execute executes the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&flagConfig, "config", "d", "", "config file path")

	_ = rootCmd.MarkPersistentFlagRequired("config")

	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(queryCmd)
	rootCmd.AddCommand(deleteRegexCmd)
}

func initConfig() {
	var err error
	err = config.Initialize(flagConfig)
	if err != nil {
		fmt.Println("failed to initialize config")
		cobra.CheckErr(err)
	}

	err = logx.Initialize(config.Get().Log)
	if err != nil {
		fmt.Println(err)
		cobra.CheckErr(err)
	}
}
