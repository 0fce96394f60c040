package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scopenote/scopenote/internal/api"
)

var noteBaseFile string

var noteCmd = &cobra.Command{
	Use:   "note <session-id>",
	Short: "Generate the operative note for a closed session",
	Long: `Ask the backend to generate the operative note for a session
that has already been closed. An optional baseline note is merged in.

Examples:
  scopenote note 4f1c0a93be6f4d2a
  scopenote note 4f1c0a93be6f4d2a -f baseline.txt --json`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()

		baseNote := ""
		if noteBaseFile != "" {
			data, err := os.ReadFile(noteBaseFile)
			if err != nil {
				return fmt.Errorf("read %s: %w", noteBaseFile, err)
			}
			baseNote = string(data)
		}

		client := api.NewClient(api.Config{BaseURL: cfg.BackendURL})
		resp, err := client.GenerateOpnote(cmd.Context(), args[0], baseNote)
		if err != nil {
			return err
		}

		if outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(resp)
		}
		fmt.Println(resp.OperativeNote)
		return nil
	},
}

func init() {
	noteCmd.Flags().StringVarP(&noteBaseFile, "file", "f", "", "baseline note to merge into the generated note")
}
