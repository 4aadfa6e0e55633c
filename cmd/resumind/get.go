package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"resumind-backend/internal/analysis"
	"resumind-backend/internal/bootstrap"
)

var getCmd = &cobra.Command{
	Use:   "get <analysis-id>",
	Short: "Print a stored analysis, falling back to legacy keys",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := loadConfig()
		configureLogging(cfg)
		a, err := bootstrap.BuildContext(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := a.Retriever.Retrieve(cmd.Context(), args[0])
		if err != nil && !errors.Is(err, analysis.ErrIncomplete) {
			return err
		}
		if werr := writeRecord(cmd, out.Record); werr != nil {
			return werr
		}
		if err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), err)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(getCmd)
}
