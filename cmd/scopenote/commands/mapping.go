package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"

	"github.com/spf13/cobra"

	"github.com/scopenote/scopenote/internal/diagram"
)

var mappingPath string

var mappingCmd = &cobra.Command{
	Use:   "mapping",
	Short: "Inspect the anatomical diagram mapping",
}

var mappingListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the mapping's locations",
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMappingFlag()
		if err != nil {
			return err
		}

		keys := make([]string, 0, len(m))
		for key := range m {
			keys = append(keys, key)
		}
		sort.Strings(keys)

		if outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(m)
		}
		for _, key := range keys {
			loc := m[key]
			fmt.Printf("%-28s %-24s (%.2f, %.2f) %s\n", key, loc.DisplayName, loc.X, loc.Y, loc.Group)
		}
		return nil
	},
}

var mappingResolveCmd = &cobra.Command{
	Use:   "resolve <label>...",
	Short: "Resolve backend labels to diagram locations",
	Long: `Resolve raw classification labels the way the diagram does:
aliases first, then mapping keys, display names, and a slugified
retry. Unmapped labels still get a stable bucket key.

Examples:
  scopenote mapping resolve "GE Junction" corpus retroflex
  scopenote mapping resolve "Incisura Angularis" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := loadMappingFlag()
		if err != nil {
			return err
		}

		type resolved struct {
			Label   string            `json:"label"`
			Key     string            `json:"key"`
			Display string            `json:"display"`
			Mapped  bool              `json:"mapped"`
			At      *diagram.Location `json:"at,omitempty"`
		}
		results := make([]resolved, 0, len(args))
		for _, label := range args {
			n := m.Normalize(label)
			results = append(results, resolved{
				Label:   label,
				Key:     n.Key,
				Display: n.Display,
				Mapped:  n.Mapped(),
				At:      n.Location,
			})
		}

		if outputJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(results)
		}
		for _, r := range results {
			if r.Mapped {
				fmt.Printf("%s -> %s (%s) at (%.2f, %.2f)\n", r.Label, r.Display, r.Key, r.At.X, r.At.Y)
			} else {
				fmt.Printf("%s -> unmapped, bucketed as %q\n", r.Label, r.Key)
			}
		}
		return nil
	},
}

func loadMappingFlag() (diagram.Mapping, error) {
	path := mappingPath
	if path == "" {
		path = getConfig().MappingPath
	}
	return diagram.LoadMapping(path)
}

func init() {
	mappingCmd.PersistentFlags().StringVar(&mappingPath, "mapping", "", "mapping JSON path (default embedded)")
	mappingCmd.AddCommand(mappingListCmd)
	mappingCmd.AddCommand(mappingResolveCmd)
}
