package cli

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"numeric-desensitizer/internal/batch"
)

func newDesensitizeCmd(a *app) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "desensitize <file|dir>",
		Short: "Replace sensitive numbers with placeholders",
		Long: `Desensitizes a file, or every top-level file with an allowed extension in a
directory. A file is written to <name>_desensitized<ext> with its mapping at
<name>_desensitized_map.json unless -o is given. A directory is written to
<dir>_desensitized with one mapping per file.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			dir, err := isDir(in)
			if err != nil {
				return inputError(in, err)
			}
			p := batch.New(a.cfg.Extensions, a.log.Module("BATCH"), a.metrics)
			out := cmd.OutOrStdout()

			if !dir {
				res, err := p.DesensitizeFile(in, output)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ %s → %s (%d numbers)\n", res.Input, res.Output, res.Count)
				fmt.Fprintf(out, "  Mapping: %s\n", res.Mapping)
				return nil
			}

			sum, err := p.DesensitizeDir(cmd.Context(), in, output)
			if err != nil {
				return err
			}
			for _, f := range sum.Files {
				if f.Err == nil {
					fmt.Fprintf(out, "✓ %s (%d numbers)\n", f.Output, f.Count)
				}
			}
			return summarize(out, "desensitized", sum)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory")
	return cmd
}

func newRestoreCmd(a *app) *cobra.Command {
	var output, mapping string
	cmd := &cobra.Command{
		Use:   "restore <file|dir>",
		Short: "Put the original numbers back using a mapping file",
		Long: `Restores a desensitized file, or every allowed top-level file in a
directory, using one mapping file. Output defaults to <name>_restored<ext>
or <dir>_restored.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			in := args[0]
			dir, err := isDir(in)
			if err != nil {
				return inputError(in, err)
			}
			p := batch.New(a.cfg.Extensions, a.log.Module("BATCH"), a.metrics)
			out := cmd.OutOrStdout()

			if !dir {
				res, err := p.RestoreFile(in, mapping, output)
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "✓ %s → %s (%d placeholders)\n", res.Input, res.Output, res.Count)
				return nil
			}

			sum, err := p.RestoreDir(cmd.Context(), in, mapping, output)
			if err != nil {
				return err
			}
			for _, f := range sum.Files {
				if f.Err == nil {
					fmt.Fprintf(out, "✓ %s (%d placeholders)\n", f.Output, f.Count)
				}
			}
			return summarize(out, "restored", sum)
		},
	}
	cmd.Flags().StringVarP(&mapping, "mapping", "m", "", "mapping file written by desensitize")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output file or directory")
	_ = cmd.MarkFlagRequired("mapping")
	return cmd
}

// summarize prints the directory totals and fails the command when any file
// could not be processed.
func summarize(out io.Writer, verb string, sum *batch.Summary) error {
	failed := sum.Failed()
	fmt.Fprintf(out, "%d files %s into %s\n", sum.Processed(), verb, sum.OutputDir)
	for _, f := range failed {
		fmt.Fprintf(out, "✗ %s: %v\n", f.Input, f.Err)
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d files failed", len(failed), len(sum.Files))
	}
	return nil
}

func inputError(path string, err error) error {
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("%s: %w", path, batch.ErrNotFound)
	}
	return err
}
