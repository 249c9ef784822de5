package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/curator-ml/curator/pkg/config"
)

func newValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <file>",
		Short: "Validate a desired-state document",
		Long: `Validate a desired-state document without touching any resource.

Prints every problem found and exits non-zero when the document is
rejected.`,
		Example: `  # Validate a document
  curator validate media.json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read document: %w", err)
			}

			_, errs := config.NewValidator().Validate(data)
			if len(errs) > 0 {
				for _, msg := range errs {
					fmt.Fprintln(os.Stderr, " -", msg)
				}
				return fmt.Errorf("document rejected with %d problem(s)", len(errs))
			}

			fmt.Println("Document is valid.")
			return nil
		},
	}
	return cmd
}
