package command

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nuno7lopes-collab/ORYA-WebApp-sub012/internal/db"
)

func writeCommandError(cmd *cobra.Command, err error) error {
	fmt.Fprintf(cmd.ErrOrStderr(), "Error: %s\n", err.Error())

	if isCacheError(err) {
		fmt.Fprintf(cmd.ErrOrStderr(), "Hint: The local cache is unreadable. Try: %s history --reset\n", AppName)
	}

	return err
}

// isCacheError reports whether err comes from a cache that a reset would fix:
// rows that no longer decode, tables from another layout, or a damaged file.
func isCacheError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, db.ErrCorrupt) {
		return true
	}
	msg := err.Error()
	for _, marker := range []string{
		"no such table: orya_",
		"no such column",
		"has no column named",
		"file is not a database",
		"database disk image is malformed",
	} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}
