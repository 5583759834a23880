package commands

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lightblue/fitbot-go/internal/assistant"
	"github.com/lightblue/fitbot-go/internal/logging"
)

// NewAskCmd constructs the `fitbot ask` command, which answers a single
// question from the command line, or starts a terminal Q&A loop with -i.
func NewAskCmd() *cobra.Command {
	var interactive bool
	var verbose bool

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask the FIT Assistant a question",
		Long: `Ask the FIT Assistant a natural language question about the Food
Intelligence Tool.

The question is matched against the indexed FAQ; a confident match is
answered by the LLM grounded in the retrieved entries, and a poor match is
referred to the FIT Support Team.

Examples:
  fitbot ask "What is FWCV?"
  fitbot ask "When do I enter covers?"
  fitbot ask -i`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if !interactive && len(args) == 0 {
				return fmt.Errorf("ask: provide a question or use -i for interactive mode")
			}

			asst, _, _, cleanup, err := buildAssistant(ctx, log)
			if err != nil {
				return fmt.Errorf("ask: %w", err)
			}
			defer cleanup()

			sess := assistant.NewSession("cli", sessionBudget())

			if !interactive {
				return askOnce(cmd, asst, sess, strings.Join(args, " "), verbose)
			}

			fmt.Println("FIT Assistant — type a question, or 'exit' to quit.")
			scanner := bufio.NewScanner(os.Stdin)
			for {
				fmt.Print("> ")
				if !scanner.Scan() {
					break
				}
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					continue
				}
				if line == "exit" || line == "quit" {
					break
				}
				if err := askOnce(cmd, asst, sess, line, verbose); err != nil {
					fmt.Fprintln(os.Stderr, err)
				}
			}
			return scanner.Err() //nolint:wrapcheck
		},
	}

	cmd.Flags().BoolVarP(&interactive, "interactive", "i", false, "Start an interactive Q&A loop")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Print retrieval scores and token usage")

	return cmd
}

// askOnce runs one question through the pipeline and prints the reply.
func askOnce(cmd *cobra.Command, asst *assistant.Assistant, sess *assistant.Session, question string, verbose bool) error {
	reply, err := asst.Ask(cmd.Context(), sess, question)
	if err != nil {
		return fmt.Errorf("ask: %w", err)
	}

	fmt.Println(reply.Text)

	if verbose {
		fmt.Printf("\n[outcome=%s model=%s tokens=%d latency=%.2fs scores=%v cached=%v escalated=%v]\n",
			reply.Outcome, reply.ModelUsed, reply.TokensUsed,
			reply.Latency.Seconds(), reply.Scores, reply.Cached, reply.Escalated)
	}
	return nil
}
