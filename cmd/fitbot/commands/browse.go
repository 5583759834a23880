package commands

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lightblue/fitbot-go/internal/browse"
	"github.com/lightblue/fitbot-go/internal/faq"
)

// NewBrowseCmd constructs the `fitbot browse` command, a terminal loop for
// navigating the FAQ by category instead of free-text search.
func NewBrowseCmd() *cobra.Command {
	var csvPath string

	cmd := &cobra.Command{
		Use:   "browse",
		Short: "Browse the FAQ by category",
		Long: `Browse the FAQ knowledge base through its category tree.

Navigation works entirely from the CSV file — no model, vector store, or
network access is needed. Pick options by number, 'b' to go back, 'q' to
quit.

Examples:
  fitbot browse --csv ./data/fit_faq.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			records, err := faq.LoadCSV(csvPath)
			if err != nil {
				return fmt.Errorf("browse: %w", err)
			}

			tree := browse.NewTree(records)
			if tree.Empty() {
				return fmt.Errorf("browse: no categorised entries in %s", csvPath)
			}

			nav := browse.NewNavigator(tree)
			scanner := bufio.NewScanner(os.Stdin)

			for {
				printPosition(nav)
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				input := strings.TrimSpace(scanner.Text())
				switch input {
				case "":
					continue
				case "q", "quit", "exit":
					return nil
				case "b", "back":
					nav.Back()
					continue
				}

				options := nav.Options()
				idx, err := strconv.Atoi(input)
				if err != nil || idx < 1 || idx > len(options) {
					fmt.Println("pick an option number, 'b' for back, or 'q' to quit")
					continue
				}
				if err := nav.Select(options[idx-1]); err != nil {
					fmt.Println(err)
				}
			}
			return scanner.Err() //nolint:wrapcheck
		},
	}

	cmd.Flags().StringVarP(&csvPath, "csv", "c", getEnvOrDefault("FAQ_CSV", "faq.csv"), "Path to the FAQ CSV file")

	return cmd
}

// printPosition renders the current navigation level: breadcrumb, article
// text when one is open, and the numbered option list.
func printPosition(nav *browse.Navigator) {
	if path := nav.Path(); len(path) > 0 {
		fmt.Printf("\n%s\n", strings.Join(path, " / "))
	} else {
		fmt.Println("\nFAQ categories")
	}

	if art, ok := nav.Article(); ok {
		fmt.Printf("\nQ: %s\nA: %s\n", art.Question, art.Answer)
		fmt.Println("\n'b' for back, 'q' to quit")
		return
	}

	for i, opt := range nav.Options() {
		fmt.Printf("  %d. %s\n", i+1, opt)
	}
}
