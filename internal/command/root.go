package command

import (
	"os"

	"github.com/spf13/cobra"
)

const AppName = "orya-chat"

// Version is overwritten at build time using -ldflags.
var Version = "dev"

func NewRootCmd(version string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           AppName,
		Short:         "Orya chat - live conversations in the terminal",
		Long:          "Orya chat keeps a conversation in sync with the chat service and renders it in the terminal.",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	cmd.Version = version
	cmd.SetVersionTemplate(AppName + " version {{.Version}}\n")
	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	flags := cmd.PersistentFlags()
	flags.String("config", "", "config file (default ~/.config/orya-chat/config.yaml)")
	flags.String("api-url", "", "chat API base URL")
	flags.String("ws-url", "", "real-time stream URL")
	flags.String("token", "", "access token")
	flags.String("viewer", "", "viewer user id")
	flags.String("cache", "", "local cache database path")
	flags.String("log-file", "", "write logs to this file")
	flags.String("log-level", "", "log level (debug, info, warn, error)")
	flags.Bool("json", false, "output in JSON format")

	cmd.AddCommand(
		NewChatCmd(),
		NewReplayCmd(),
		NewHistoryCmd(),
		NewConfigCmd(),
		NewVersionCmd(),
	)

	return cmd
}

func Execute() error {
	return NewRootCmd(Version).Execute()
}
