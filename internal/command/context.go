package command

import (
	"database/sql"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/core"
	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/db"
)

// CommandContext provides shared command resources.
type CommandContext struct {
	Config     core.Config
	ConfigPath string
	JSONMode   bool
	Logger     *slog.Logger

	logCloser io.Closer
	db        *sql.DB
}

// GetContext loads the settings for a command: the config file, then the
// environment, then any flags that were set.
func GetContext(cmd *cobra.Command) (*CommandContext, error) {
	path, err := configPath(cmd)
	if err != nil {
		return nil, err
	}
	config, err := core.LoadConfig(path)
	if err != nil {
		return nil, err
	}
	applyFlags(cmd, &config)
	if err := config.Validate(); err != nil {
		return nil, err
	}

	logger, closer, err := core.NewLogger(config.LogPath, config.LogLevel)
	if err != nil {
		return nil, err
	}
	jsonMode, _ := cmd.Flags().GetBool("json")
	return &CommandContext{
		Config:     config,
		ConfigPath: path,
		JSONMode:   jsonMode,
		Logger:     logger,
		logCloser:  closer,
	}, nil
}

// DB opens the local cache on first use.
func (c *CommandContext) DB() (*sql.DB, error) {
	if c.db != nil {
		return c.db, nil
	}
	conn, err := db.Open(c.Config.CachePath)
	if err != nil {
		return nil, err
	}
	c.db = conn
	return conn, nil
}

// Close releases the cache and the log file.
func (c *CommandContext) Close() {
	if c.db != nil {
		_ = c.db.Close()
	}
	if c.logCloser != nil {
		_ = c.logCloser.Close()
	}
}

func configPath(cmd *cobra.Command) (string, error) {
	if path, _ := cmd.Flags().GetString("config"); path != "" {
		return path, nil
	}
	return core.ConfigPath()
}

func applyFlags(cmd *cobra.Command, config *core.Config) {
	overrides := []struct {
		flag   string
		target *string
	}{
		{"api-url", &config.APIURL},
		{"ws-url", &config.StreamURL},
		{"token", &config.Token},
		{"viewer", &config.ViewerID},
		{"cache", &config.CachePath},
		{"log-file", &config.LogPath},
		{"log-level", &config.LogLevel},
	}
	for _, o := range overrides {
		if !cmd.Flags().Changed(o.flag) {
			continue
		}
		if value, err := cmd.Flags().GetString(o.flag); err == nil {
			*o.target = value
		}
	}
}
