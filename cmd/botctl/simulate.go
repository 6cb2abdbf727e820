package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/astrobot/server/internal/app"
	"github.com/astrobot/server/internal/config"
	"github.com/astrobot/server/internal/model"
)

// SimulateCommand creates the simulate command
func SimulateCommand() *cobra.Command {
	var (
		user     string
		language string
	)

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Chat with the bot locally against an in-memory store",
		Long: `Run the conversation in the terminal. Each line you type is sent as one
inbound text message; the replies are printed as the transport would receive
them. Geocoding uses the built-in place list and content uses the templates.

Type /reset to return to the greeting and /quit to leave.

Examples:
  botctl simulate
  botctl simulate --user 447700900189 --default-language es`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Default()
			cfg.Store = "memory"
			cfg.JWTSecret = "simulate"
			cfg.DefaultLanguage = language
			return runSimulate(cmd.Context(), cfg, user, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&user, "user", "simulator", "User id to chat as")
	cmd.Flags().StringVar(&language, "default-language", "en", "Default language (en, es, fr)")

	return cmd
}

func runSimulate(ctx context.Context, cfg *config.Config, user string, in io.Reader, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	bot, err := app.New(ctx, cfg, zap.NewNop())
	if err != nil {
		return err
	}
	defer bot.Close()

	scanner := bufio.NewScanner(in)
	fmt.Fprint(out, "> ")
	for seq := 1; scanner.Scan(); seq++ {
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			fmt.Fprint(out, "> ")
			continue
		case "/quit":
			return nil
		case "/reset":
			if err := bot.Dispatcher.ResetSession(ctx, user); err != nil {
				fmt.Fprintf(out, "reset failed: %v\n", err)
			} else {
				fmt.Fprintln(out, "(session reset)")
			}
			fmt.Fprint(out, "> ")
			continue
		}

		res, err := bot.Dispatcher.Dispatch(ctx, model.Envelope{
			ID:   fmt.Sprintf("sim-%d", seq),
			From: user,
			Type: model.MessageTypeText,
			Text: &model.TextBody{Body: line},
		})
		if err != nil {
			return err
		}
		for _, intent := range res.Intents {
			fmt.Fprintln(out, intent.Body)
			if intent.Kind == model.IntentButtons {
				fmt.Fprintf(out, "[%s]\n", strings.Join(intent.Options, "] ["))
			}
			fmt.Fprintln(out)
		}
		fmt.Fprint(out, "> ")
	}
	return scanner.Err()
}
