package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"
)

func newWellCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "well <collection-id> <well>",
		Short: "Print the composition committed to one well, e.g. B3",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWell(cmd.Context(), cmd.OutOrStdout(), root.configPath, args[0], args[1])
		},
	}
}

func runWell(ctx context.Context, out io.Writer, configPath, collectionID, well string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	rt, err := openRuntime(ctx, configPath)
	if err != nil {
		return err
	}
	defer rt.Close()
	rec, err := rt.service.WellComposition(ctx, collectionID, well)
	if err != nil {
		return err
	}
	payload, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("encode well %s: %w", rec.Well, err)
	}
	_, err = fmt.Fprintln(out, string(payload))
	return err
}
