package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/movie-frontier/internal/frontier"
)

func newSeedCmd() *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "seed [movie-id...]",
		Short: "Insert starting movie ids into the frontier",
		Long: `Runs a seed batch through the pipeline synchronously. Ids come from
the arguments, from --file (one id per line, # starts a comment), or both.
Ids that are already known are skipped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			ids, err := parseIDs(args)
			if err != nil {
				return err
			}
			if file != "" {
				fromFile, err := readIDFile(file)
				if err != nil {
					return err
				}
				ids = append(ids, fromFile...)
			}
			if len(ids) == 0 {
				return fmt.Errorf("no movie ids given")
			}
			res, err := appInstance.Pipeline.Process(cmd.Context(), frontier.SeedItem(ids...))
			if err != nil {
				return fmt.Errorf("seed: %w", err)
			}
			_, err = fmt.Fprintf(cmd.OutOrStdout(), "seeded %d new movies from %d ids\n", res.Discovered, len(ids))
			return err
		},
	}
	cmd.Flags().StringVar(&file, "file", "", "file with one movie id per line")
	return cmd
}

func parseIDs(values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid movie id %q", v)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func readIDFile(path string) ([]int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return scanIDs(f)
}

func scanIDs(r io.Reader) ([]int64, error) {
	var lines []string
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if i := strings.IndexByte(line, '#'); i >= 0 {
			line = line[:i]
		}
		if line = strings.TrimSpace(line); line != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return parseIDs(lines)
}
