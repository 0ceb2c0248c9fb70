// Package cli implements the assist command: a single-prompt or interactive
// chat client over the same request pipeline the server uses.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"code-assistant/internal/assistant"
	"code-assistant/internal/config"
	"code-assistant/internal/services"
)

const (
	// Requests from the CLI are never concurrent; the limiter only paces.
	cliRequestsPerMinute = 60
	cliConcurrentReqs    = 1
)

type generator interface {
	Generate(ctx context.Context, req *assistant.Request) (assistant.Result, error)
}

// lineReader is the part of *liner.State the interactive loop uses.
type lineReader interface {
	Prompt(prompt string) (string, error)
	AppendHistory(item string)
	Close() error
}

// App holds the collaborators of the command so tests can swap them.
type App struct {
	NewGenerator func(apiKey string) (generator, error)
	NewReader    func() lineReader
	Extractor    assistant.TextExtractor
}

func defaultApp() *App {
	return &App{
		NewGenerator: func(apiKey string) (generator, error) {
			return services.NewGeminiService(apiKey, cliRequestsPerMinute, cliConcurrentReqs)
		},
		NewReader: func() lineReader {
			line := liner.NewLiner()
			line.SetCtrlCAborts(true)
			return line
		},
		Extractor: services.NewFileExtractService(),
	}
}

type options struct {
	prompt   string
	files    []string
	thinking bool
	search   bool
	apiKey   string
}

// NewRootCommand builds the assist command around app.
func NewRootCommand(app *App) *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "assist [prompt words...]",
		Short: "Chat with Gemini about your code",
		Long: `Ask Gemini a question, optionally with files attached as context.

With a prompt (--prompt or trailing words) the answer is printed and the
command exits. Without one, an interactive session starts; type "exit" to quit.

Examples:
  assist -p "explain this" -f main.go
  assist --thinking how do I structure a worker pool
  assist --search -f go.mod`,
		SilenceUsage:  true,
		SilenceErrors: true, // Execute prints the error
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.run(cmd.Context(), cmd.OutOrStdout(), cmd.ErrOrStderr(), opts, args)
		},
	}

	cmd.Flags().StringVarP(&opts.prompt, "prompt", "p", "", "Prompt to send (single-prompt mode)")
	cmd.Flags().StringArrayVarP(&opts.files, "file", "f", nil, "File to attach as context (repeatable)")
	cmd.Flags().BoolVar(&opts.thinking, "thinking", false, "Use thinking mode (gemini-2.5-pro)")
	cmd.Flags().BoolVar(&opts.search, "search", false, "Ground answers with Google Search")
	cmd.Flags().StringVar(&opts.apiKey, "api-key", "", "Gemini API key (defaults to API_KEY or GEMINI_API_KEY)")

	return cmd
}

// Execute runs the assist command and exits non-zero on error.
func Execute() {
	if err := NewRootCommand(defaultApp()).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (app *App) run(ctx context.Context, out, errOut io.Writer, opts options, args []string) error {
	if ctx == nil {
		ctx = context.Background()
	}

	words := args
	if opts.prompt != "" {
		words = append([]string{opts.prompt}, args...)
	}
	prompt := strings.TrimSpace(strings.Join(words, " "))

	mode, err := assistant.ModeFromFlags(opts.thinking, opts.search)
	if err != nil {
		return errors.New("--thinking and --search cannot be used together")
	}
	sel := assistant.ModeSelector{Thinking: opts.thinking, SearchGrounded: opts.search}

	apiKey := config.ResolveAPIKey(opts.apiKey)
	if apiKey == "" {
		return errors.New("no API key: pass --api-key or set API_KEY or GEMINI_API_KEY")
	}

	var attachments assistant.AttachmentSet
	files, err := assistant.LoadAttachments(ctx, assistant.PathSources(opts.files, app.Extractor))
	if err != nil {
		return err
	}
	attachments.Add(files...)

	gen, err := app.NewGenerator(apiKey)
	if err != nil {
		return err
	}

	fmt.Fprintf(out, "Mode: %s\n", mode.Description())
	if len(files) > 0 {
		fmt.Fprintf(out, "Attached files: %s\n", strings.Join(attachments.Names(), ", "))
		if attachments.ExceedsWarning() {
			fmt.Fprintf(out, "Warning: attached files total %d characters, which may exceed the model's context.\n", attachments.CharCount())
		}
	}

	if prompt != "" {
		return answerOnce(ctx, out, gen, prompt, attachments.Files(), sel)
	}
	return app.interactive(ctx, out, errOut, gen, attachments.Files(), sel)
}

func answerOnce(ctx context.Context, out io.Writer, gen generator, prompt string, files []assistant.AttachedFile, sel assistant.ModeSelector) error {
	req, err := assistant.Compose(nil, prompt, files, sel)
	if err != nil {
		return err
	}

	result, err := gen.Generate(ctx, req)
	if err != nil {
		return err
	}

	fmt.Fprintln(out, strings.TrimSpace(result.Text))
	printSources(out, result.Sources)
	return nil
}

func (app *App) interactive(ctx context.Context, out, errOut io.Writer, gen generator, files []assistant.AttachedFile, sel assistant.ModeSelector) error {
	reader := app.NewReader()
	defer reader.Close()

	fmt.Fprintln(out, `Interactive mode. Type "exit" to quit.`)

	history := assistant.NewHistory()
	for {
		line, err := reader.Prompt("You > ")
		if err != nil {
			// EOF or Ctrl+C
			fmt.Fprintln(out)
			return nil
		}

		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if strings.EqualFold(input, "exit") {
			return nil
		}
		reader.AppendHistory(line)

		req, err := assistant.Compose(history.Turns(), input, files, sel)
		if err != nil {
			return err
		}

		result, err := gen.Generate(ctx, req)
		if err != nil {
			fmt.Fprintf(errOut, "Failed to generate a response: %v\n", err)
			continue
		}

		text := strings.TrimSpace(result.Text)
		fmt.Fprintf(out, "Assistant > %s\n", text)
		printSources(out, result.Sources)

		history.Append(assistant.UserTurn(input), assistant.AssistantTurn(text))
	}
}

func printSources(out io.Writer, sources []assistant.GroundingSource) {
	if len(sources) == 0 {
		return
	}
	fmt.Fprintln(out, "\nSources:")
	for _, s := range sources {
		fmt.Fprintf(out, "- %s (%s)\n", s.DisplayName(), s.URI)
	}
}
