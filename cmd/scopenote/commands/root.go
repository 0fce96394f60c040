package commands

import (
	"github.com/spf13/cobra"

	"github.com/scopenote/scopenote/internal/bootstrap"
)

var (
	backendURL string
	outputJSON bool

	globalConfig *bootstrap.Config
)

var rootCmd = &cobra.Command{
	Use:   "scopenote",
	Short: "Endoscopy documentation assistant",
	Long: `scopenote documents an endoscopy procedure as it happens: it
classifies still images against the anatomical diagram, streams live
dictation for transcription, and assembles the operative note when the
session closes.

Examples:
  # run the live assistant against a local backend
  scopenote run

  # classify a set of captured stills in one shot
  scopenote classify antrum.png fundus.png --hint "biopsy at antrum"

  # fetch the operative note for a closed session
  scopenote note 4f1c0a… -f baseline.txt`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&backendURL, "backend", "", "backend base URL (default from SCOPENOTE_BACKEND_URL)")
	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(noteCmd)
	rootCmd.AddCommand(convertAudioCmd)
	rootCmd.AddCommand(mappingCmd)
}

func initConfig() {
	globalConfig = bootstrap.LoadConfig()
	if backendURL != "" {
		globalConfig.BackendURL = backendURL
	}
}

func getConfig() *bootstrap.Config {
	return globalConfig
}
