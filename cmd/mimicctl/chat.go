package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"mimic-assistant/internal/app"
	"mimic-assistant/internal/conversation"
)

func newChatCmd(withApp appRunner) *cobra.Command {
	var conversationID string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Open an interactive conversation (one message per line, /quit to leave)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withApp(cmd, func(a *app.App) error {
				return runChat(cmd, a.Conversations, conversationID)
			})
		},
	}
	cmd.Flags().StringVarP(&conversationID, "conversation", "c", "", "resume a stored conversation")
	return cmd
}

func runChat(cmd *cobra.Command, m *conversation.Manager, id string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	session, err := m.Open(ctx, id)
	if err != nil {
		return err
	}
	for _, msg := range session.Log() {
		printTurn(out, string(msg.Role), msg.Content)
	}
	fmt.Fprintf(out, "(conversation %s)\n", session.ID())

	scanner := bufio.NewScanner(cmd.InOrStdin())
	for {
		if stdinIsTerminal() {
			fmt.Fprint(out, prompt(session.PrivilegedMode()))
		}
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		}

		res, err := m.Submit(ctx, session.ID(), line)
		switch {
		case err == nil:
		case errors.Is(err, conversation.ErrPersist):
			fmt.Fprintln(cmd.ErrOrStderr(), "warning: reply not saved")
		default:
			return err
		}
		printTurn(out, "assistant", res.Reply.Content)
	}
}

func prompt(privileged bool) string {
	if privileged {
		return "creator> "
	}
	return "you> "
}

func printTurn(w io.Writer, role, content string) {
	fmt.Fprintf(w, "[%s] %s\n", role, content)
}
