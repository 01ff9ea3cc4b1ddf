package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leandeep/marker-engine/internal/marker"
	"github.com/leandeep/marker-engine/internal/store"
)

func init() {
	markersCmd := &cobra.Command{
		Use:   "markers",
		Short: "Inspect stored marker definitions",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List markers",
		Run:   runMarkersList,
	}
	listCmd.Flags().String("level", "", "Filter by level: ATO, SEM, CLU, MEMA")
	listCmd.Flags().String("category", "", "Filter by category")
	listCmd.Flags().IntP("limit", "l", 0, "Max results (0 = all)")
	listCmd.Flags().Bool("ids-only", false, "Only output marker ids")

	showCmd := &cobra.Command{
		Use:   "show [marker-id]",
		Short: "Show one marker with its dependents",
		Args:  cobra.ExactArgs(1),
		Run:   runMarkersShow,
	}

	markersCmd.AddCommand(listCmd, showCmd)
	RootCmd.AddCommand(markersCmd)
}

func runMarkersList(cmd *cobra.Command, args []string) {
	level, _ := cmd.Flags().GetString("level")
	category, _ := cmd.Flags().GetString("category")
	limit, _ := cmd.Flags().GetInt("limit")
	idsOnly, _ := cmd.Flags().GetBool("ids-only")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	defs, err := s.ListMarkers(cmd.Context(), store.ListParams{
		Level:    level,
		Category: category,
		Limit:    limit,
	})
	if err != nil {
		exitErr("list", err)
	}

	if idsOnly {
		for _, d := range defs {
			fmt.Printf("%s\t%s\n", d.MarkerID, d.Level)
		}
		return
	}

	b, _ := json.MarshalIndent(defs, "", "  ")
	fmt.Println(string(b))
}

func runMarkersShow(cmd *cobra.Command, args []string) {
	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	def, err := s.GetMarker(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}

	dependencies, err := s.Dependencies(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}
	dependents, err := s.Dependents(cmd.Context(), args[0])
	if err != nil {
		exitErr("show", err)
	}

	out := struct {
		Marker     *marker.Definition `json:"marker"`
		DependsOn  []string           `json:"depends_on,omitempty"`
		Dependents []string           `json:"dependents,omitempty"`
	}{Marker: def, DependsOn: dependencies, Dependents: dependents}

	b, _ := json.MarshalIndent(out, "", "  ")
	fmt.Println(string(b))
}
