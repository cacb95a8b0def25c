package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/chatview"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/db"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/metrics"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/reconcile"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/transport"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/tui"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/types"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/viewport"
)

// NewChatCmd creates the chat command.
func NewChatCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "chat <conversation>",
		Short: "Open a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, err := GetContext(cmd)
			if err != nil {
				return writeCommandError(cmd, err)
			}
			defer ctx.Close()
			if ctx.JSONMode {
				return writeCommandError(cmd, fmt.Errorf("--json not supported for interactive chat"))
			}
			if ctx.Config.ViewerID == "" {
				return writeCommandError(cmd, fmt.Errorf("viewer id is required (--viewer or ORYA_CHAT_VIEWER_ID)"))
			}
			if addr, _ := cmd.Flags().GetString("metrics-addr"); addr != "" {
				ctx.Config.MetricsAddr = addr
			}
			noCache, _ := cmd.Flags().GetBool("no-cache")
			return writeErr(cmd, runChat(cmd.Context(), ctx, args[0], !noCache))
		},
	}

	cmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	cmd.Flags().Bool("no-cache", false, "do not read or write the local cache")
	return cmd
}

func runChat(parent context.Context, cc *CommandContext, conversationID string, useCache bool) error {
	config := cc.Config
	logger := cc.Logger

	client, err := transport.NewClient(config.APIURL, config.Token)
	if err != nil {
		return err
	}
	client.SetTimeout(config.HTTPTimeout)
	stream := transport.NewStream(transport.StreamConfig{
		URL:    config.StreamURL,
		Token:  config.Token,
		Logger: logger,
	})
	collectors := metrics.New()

	runCtx, cancel := context.WithCancel(parent)
	defer cancel()

	apis := client.Collaborators()
	apis.Typing = stream
	ctl := chatview.New(apis, controllerOptions(runCtx, cc, collectors))

	if useCache {
		conn, err := cc.DB()
		if err != nil {
			return err
		}
		restored, err := db.Restore(conn, ctl.Reconciler())
		if err != nil {
			logger.Warn("cache restore failed", "err", err)
		} else {
			logger.Info("cache restored", "conversations", restored)
		}
	}
	ensureConversation(ctl, conversationID)

	events := make(chan tea.Msg, 64)
	g, gctx := errgroup.WithContext(runCtx)
	g.Go(func() error {
		return ignoreCanceled(stream.Run(gctx, events))
	})
	if config.MetricsAddr != "" {
		g.Go(func() error {
			return ignoreCanceled(collectors.Serve(gctx, config.MetricsAddr, logger))
		})
	}

	runErr := tui.Run(tui.Options{
		Controller:     ctl,
		ConversationID: conversationID,
		ViewerID:       config.ViewerID,
		Events:         events,
		Observer:       collectors,
		Logger:         logger,
	})
	cancel()
	if err := g.Wait(); err != nil {
		logger.Warn("background task stopped", "err", err)
	}

	if useCache {
		conn, err := cc.DB()
		if err == nil {
			err = db.Persist(conn, ctl.Reconciler().Store(), time.Now())
		}
		if err != nil {
			logger.Warn("cache persist failed", "err", err)
		}
	}
	return runErr
}

func controllerOptions(ctx context.Context, cc *CommandContext, recorder reconcile.Recorder) chatview.Options {
	config := cc.Config
	vp := tui.ViewportConfig(viewport.DefaultConfig())
	vp.ShowNewMessagesDivider = config.Banners.NewMessagesDivider
	vp.ShowJumpToLatest = config.Banners.JumpToLatest
	return chatview.Options{
		ViewerID:             config.ViewerID,
		Username:             config.Username,
		FullName:             config.FullName,
		Viewport:             vp,
		MenuThreshold:        tui.MenuThreshold,
		TypingIdle:           config.TypingIdle,
		ReceiptEvery:         config.ReceiptEvery,
		ShowConnectionBanner: config.Banners.ConnectionState,
		Logger:               cc.Logger,
		Recorder:             recorder,
		Context:              ctx,
	}
}

func ensureConversation(ctl *chatview.Controller, conversationID string) {
	if _, ok := ctl.Reconciler().Store().Conversation(conversationID); ok {
		return
	}
	ctl.PutConversation(types.Conversation{ID: conversationID})
}

func ignoreCanceled(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func writeErr(cmd *cobra.Command, err error) error {
	if err == nil {
		return nil
	}
	return writeCommandError(cmd, err)
}
