package command

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/db"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
)

// NewHistoryCmd creates the history command.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [conversation]",
		Short: "Show cached conversations and messages",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()

			if reset, _ := cmd.Flags().GetBool("reset"); reset {
				return writeErr(cmd, resetCache(cmd, ctx))
			}
			conn, err := ctx.DB()
			if err != nil {
				return writeCommandError(cmd, err)
			}

			if len(args) == 0 {
				conversations, err := db.ListConversations(conn)
				if err != nil {
					return writeCommandError(cmd, err)
				}
				if ctx.JSONMode {
					return json.NewEncoder(cmd.OutOrStdout()).Encode(conversations)
				}
				out := cmd.OutOrStdout()
				if len(conversations) == 0 {
					fmt.Fprintln(out, "No cached conversations")
					return nil
				}
				for _, conversation := range conversations {
					fmt.Fprintf(out, "%s  %s", conversation.ID, conversationLabel(conversation))
					if conversation.Unread > 0 {
						fmt.Fprintf(out, "  (%d unread)", conversation.Unread)
					}
					fmt.Fprintln(out)
				}
				return nil
			}

			if forget, _ := cmd.Flags().GetBool("forget"); forget {
				if err := db.DeleteSnapshot(conn, args[0]); err != nil {
					return writeCommandError(cmd, err)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Forgot %s\n", args[0])
				return nil
			}

			snap, ok, err := db.LoadSnapshot(conn, args[0])
			if err != nil {
				return writeCommandError(cmd, err)
			}
			if !ok {
				return writeCommandError(cmd, fmt.Errorf("conversation %s is not cached", args[0]))
			}
			last, _ := cmd.Flags().GetInt("last")
			messages := snap.Messages
			if last > 0 && len(messages) > last {
				messages = messages[len(messages)-last:]
			}
			if ctx.JSONMode {
				return json.NewEncoder(cmd.OutOrStdout()).Encode(messages)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s · saved %s\n", conversationLabel(snap.Conversation), humanize.Time(snap.SavedAt))
			for _, msg := range messages {
				fmt.Fprintln(out, formatMessage(snap.Conversation, msg))
			}
			return nil
		},
	}

	cmd.Flags().Int("last", 20, "number of messages to show (0 for all)")
	cmd.Flags().Bool("forget", false, "drop the cached copy of the conversation")
	cmd.Flags().Bool("reset", false, "delete the local cache database")
	return cmd
}

func conversationLabel(conversation types.Conversation) string {
	if conversation.Title != "" {
		return conversation.Title
	}
	names := make([]string, 0, len(conversation.Members))
	for _, member := range conversation.Members {
		names = append(names, member.Label())
	}
	if len(names) == 0 {
		return core.ShortID(conversation.ID, 8)
	}
	return strings.Join(names, ", ")
}

func formatMessage(conversation types.Conversation, msg types.Message) string {
	author := "Member"
	if member, ok := conversation.Member(msg.AuthorID); ok {
		author = member.Label()
	}
	body := msg.Body
	if msg.Deleted {
		body = "(deleted)"
	} else if msg.Edited {
		body += " (edited)"
	}
	return fmt.Sprintf("[%s] %s: %s", msg.CreatedAt.Local().Format(time.DateTime), author, body)
}

func resetCache(cmd *cobra.Command, ctx *CommandContext) error {
	path := ctx.Config.CachePath
	for _, suffix := range []string{"", "-wal", "-shm"} {
		if err := os.Remove(path + suffix); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Removed cache %s\n", path)
	return nil
}
