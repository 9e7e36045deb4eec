package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"oceanworks.io/datapipe/internal/config"
	"oceanworks.io/datapipe/internal/storage"
	"oceanworks.io/datapipe/pkg/logx"
)

var flagAllowMatchAll bool

var deleteRegexCmd = &cobra.Command{
	Use:   "delete-regex <pattern>...",
	Short: "Delete stored files matching regular expressions",
	Long:  "Delete every file in the configured storage backend whose path matches one of the given regular expressions",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if err := runDeleteRegex(cmd.Context(), args); err != nil {
			logx.As().Error().Err(err).Msg("delete failed")
			os.Exit(1)
		}
	},
}

func init() {
	deleteRegexCmd.Flags().BoolVar(&flagAllowMatchAll, "allow-match-all", false,
		"permit catch-all patterns that would delete everything")
}

func runDeleteRegex(ctx context.Context, patterns []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Get()
	broker, err := storage.GetStorageBroker(cfg.Pipeline.StoreURL)
	if err != nil {
		return err
	}

	deleted, err := broker.DeleteRegexes(ctx, patterns, flagAllowMatchAll)
	if err != nil {
		return err
	}

	for _, pf := range deleted.Files() {
		fmt.Println(pf.DestPath)
	}
	logx.As().Info().Int("deleted", deleted.Len()).Msg("delete complete")
	return nil
}
