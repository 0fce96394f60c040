package commands

import (
	"github.com/spf13/cobra"

	"github.com/scopenote/scopenote/internal/bootstrap"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the interactive documentation assistant",
	Long: `Run the live assistant. A session is opened on startup and
closed on shutdown; progress, the diagram, and dictation transcripts
are rendered to the terminal.

Relevant environment:
  SCOPENOTE_BACKEND_URL     backend base URL (default http://localhost:8484)
  SCOPENOTE_CAPTURE_DEVICE  PCM capture device or pipe (dictation off when unset)
  SCOPENOTE_AUTO_GENERATE   generate the note automatically on close`,
	RunE: func(cmd *cobra.Command, args []string) error {
		bootstrap.RunClient()
		return nil
	},
}
