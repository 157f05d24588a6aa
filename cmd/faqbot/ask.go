package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pario-ai/faqbot/pkg/chat"
	"github.com/pario-ai/faqbot/pkg/models"
)

const cliClient = "cli"

// Interactive commands.
const (
	cmdRegenerate = "/regenerar"
	cmdReset      = "/reset"
	cmdQuit       = "/salir"
)

func newAskCmd(opts *rootOptions) *cobra.Command {
	var (
		sessionID  string
		regenerate bool
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question, or start an interactive chat when no question is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			out := cmd.OutOrStdout()
			if len(args) > 0 || regenerate {
				mode := models.ModeNormal
				if regenerate {
					mode = models.ModeRegenerate
				}
				resp, err := a.chat.Handle(cmd.Context(), chat.Request{
					SessionID: sessionID,
					Client:    cliClient,
					Message:   strings.Join(args, " "),
					Mode:      mode,
				})
				if err != nil {
					return err
				}
				printReply(out, resp)
				return nil
			}
			return interactive(cmd, a.chat, sessionID, cmd.InOrStdin(), out)
		},
	}

	cmd.Flags().StringVar(&sessionID, "session", "", "session ID to continue (default: most recent CLI session)")
	cmd.Flags().BoolVar(&regenerate, "regenerate", false, "regenerate the answer to the session's last question")
	return cmd
}

func interactive(cmd *cobra.Command, svc *chat.Service, sessionID string, in io.Reader, out io.Writer) error {
	fmt.Fprintf(out, "faqbot %s. Escribe %s para otra respuesta, %s para reiniciar, %s para salir.\n",
		version, cmdRegenerate, cmdReset, cmdQuit)

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())

		req := chat.Request{SessionID: sessionID, Client: cliClient, Message: line, Mode: models.ModeNormal}
		switch line {
		case "":
			continue
		case cmdQuit:
			return nil
		case cmdReset:
			if sessionID != "" {
				if err := svc.Reset(cmd.Context(), sessionID); err != nil {
					return err
				}
			}
			sessionID = ""
			fmt.Fprintln(out, "Conversación reiniciada.")
			continue
		case cmdRegenerate:
			req.Message = ""
			req.Mode = models.ModeRegenerate
		}

		resp, err := svc.Handle(cmd.Context(), req)
		if err != nil {
			fmt.Fprintf(out, "error: %v\n", err)
			continue
		}
		sessionID = resp.SessionID
		printReply(out, resp)
	}
}

func printReply(w io.Writer, resp *chat.Response) {
	fmt.Fprintln(w, resp.Reply)
	d := resp.Decision
	if d.HasDistance {
		fmt.Fprintf(w, "[%s, distancia %.4f]\n", d.Source.Label(), d.Distance)
	} else {
		fmt.Fprintf(w, "[%s]\n", d.Source.Label())
	}
}
