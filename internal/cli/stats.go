package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leandeep/marker-engine/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show database statistics",
		Run:   runStats,
	}

	cmd.Flags().Int("top", 0, "Include the N most frequently activated markers")

	RootCmd.AddCommand(cmd)
}

func runStats(cmd *cobra.Command, args []string) {
	top, _ := cmd.Flags().GetInt("top")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context(), getDBPath())
	if err != nil {
		exitErr("stats", err)
	}

	out := struct {
		*store.Stats
		TopMarkers []store.MarkerRank `json:"top_markers,omitempty"`
	}{Stats: stats}

	if top > 0 {
		out.TopMarkers, err = s.TopMarkers(cmd.Context(), top)
		if err != nil {
			exitErr("top markers", err)
		}
	}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
