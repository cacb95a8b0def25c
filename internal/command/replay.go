package command

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/transport"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/tui"
)

// NewReplayCmd creates the replay command.
func NewReplayCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "replay <events.jsonl> <conversation>",
		Short: "Render a conversation from a recorded event log",
		Long: "Replay reads stream events, one JSON object per line, and keeps following the file " +
			"as lines are appended. Nothing is sent to the chat service.",
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()
			if ctx.JSONMode {
				return writeCommandError(cmd, fmt.Errorf("--json not supported for replay"))
			}
			return writeErr(cmd, runReplay(cmd.Context(), ctx, args[0], args[1]))
		},
	}
	return cmd
}

func runReplay(parent context.Context, cc *CommandContext, path, conversationID string) error {
	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	ctl := chatview.New(chatview.Collaborators{}, controllerOptions(runCtx, cc, nil))
	ensureConversation(ctl, conversationID)

	events := make(chan tea.Msg, 64)
	feed := transport.NewFileStream(path, cc.Logger)
	done := make(chan error, 1)
	go func() {
		done <- ignoreCanceled(feed.Run(runCtx, events))
	}()

	runErr := tui.Run(tui.Options{
		Controller:     ctl,
		ConversationID: conversationID,
		ViewerID:       cc.Config.ViewerID,
		Events:         events,
		Logger:         cc.Logger,
	})
	cancel()
	if err := <-done; err != nil {
		cc.Logger.Warn("event log follower stopped", "path", path, "err", err)
	}
	return runErr
}
