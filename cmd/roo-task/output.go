package main

import (
	"fmt"
	"io"

	"github.com/google/renameio/v2"
)

// writeOutput replaces path with the final message. Readers see either the
// previous content or the complete message.
func writeOutput(path, text string) error {
	pendingFile, err := renameio.NewPendingFile(path, renameio.WithPermissions(0o644))
	if err != nil {
		return fmt.Errorf("create pending output file: %w", err)
	}
	defer pendingFile.Cleanup()

	if _, err := io.WriteString(pendingFile, text+"\n"); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := pendingFile.CloseAtomicallyReplace(); err != nil {
		return fmt.Errorf("atomically replace output file: %w", err)
	}
	return nil
}
