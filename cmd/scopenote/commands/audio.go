package commands

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/scopenote/scopenote/internal/audio"
)

var (
	audioOut    string
	audioInRate int
	audioRate   int
)

var convertAudioCmd = &cobra.Command{
	Use:   "convert-audio <input>",
	Short: "Re-encode dictation audio to canonical PCM WAV",
	Long: `Re-encode an audio file to the 16-bit PCM WAV the backend
transcribes. WAV input is resampled; anything else is treated as raw
16-bit little-endian mono PCM at --input-rate.

Examples:
  scopenote convert-audio dictation.wav -o out.wav
  scopenote convert-audio mic.pcm --input-rate 16000 -o out.wav`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("read %s: %w", args[0], err)
		}

		opts := audio.ConvertOptions{SampleRate: audioRate}
		var wav []byte
		if bytes.HasPrefix(src, []byte("RIFF")) {
			wav, err = audio.ConvertToWAV(src, opts)
		} else {
			wav, err = audio.ConvertPCMToWAV(src, audioInRate, opts)
		}
		if err != nil {
			return err
		}

		if err := os.WriteFile(audioOut, wav, 0644); err != nil {
			return fmt.Errorf("write %s: %w", audioOut, err)
		}
		fmt.Printf("wrote %d bytes to %s\n", len(wav), audioOut)
		return nil
	},
}

func init() {
	convertAudioCmd.Flags().StringVarP(&audioOut, "output", "o", "out.wav", "output WAV path")
	convertAudioCmd.Flags().IntVar(&audioInRate, "input-rate", 16000, "sample rate of raw PCM input")
	convertAudioCmd.Flags().IntVar(&audioRate, "rate", 0, "output sample rate (default 48000)")
}
