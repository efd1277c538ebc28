package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <movie|actor> <id>",
		Short: "Print the lifecycle row of one entity as JSON",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			kind, err := frontier.ParseKind(args[0])
			if err != nil {
				return err
			}
			id, err := strconv.ParseInt(args[1], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid id %q", args[1])
			}
			entity, err := appInstance.Entities.Get(cmd.Context(), kind, id)
			if errors.Is(err, frontier.ErrNotFound) {
				return fmt.Errorf("%s %d is not in the frontier", kind, id)
			}
			if err != nil {
				return fmt.Errorf("get %s %d: %w", kind, id, err)
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entity)
		},
	}
}
