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

var queryCmd = &cobra.Command{
	Use:   "query [prefix]",
	Short: "List remote storage contents",
	Long:  "List files in the configured storage backend beneath an optional prefix",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		prefix := ""
		if len(args) > 0 {
			prefix = args[0]
		}
		if err := runQuery(cmd.Context(), prefix); err != nil {
			logx.As().Error().Err(err).Msg("query failed")
			os.Exit(1)
		}
	},
}

func runQuery(ctx context.Context, prefix string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Get()
	broker, err := storage.GetStorageBroker(cfg.Pipeline.StoreURL)
	if err != nil {
		return err
	}

	result, err := broker.Query(ctx, prefix)
	if err != nil {
		return err
	}

	for _, rf := range result.Files() {
		fmt.Printf("%s\t%d\t%s\n", rf.DestPath, rf.Size, rf.LastModified.Format("2006-01-02 15:04:05"))
	}
	return nil
}
