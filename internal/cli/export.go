package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/leandeep/marker-engine/internal/profile"
	"github.com/leandeep/marker-engine/internal/store"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export [run-id]",
		Short: "Export a saved run",
		Long: "Export a saved run's full document. With no id, exports the latest\n" +
			"run. JSON output re-emits the stored payload byte for byte.",
		Args: cobra.MaximumNArgs(1),
		Run:  runExportCmd,
	}

	cmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")
	cmd.Flags().Bool("list", false, "List saved runs instead")
	cmd.Flags().String("session", "", "Filter --list by session id")
	cmd.Flags().IntP("limit", "l", 20, "Max results for --list")

	RootCmd.AddCommand(cmd)
}

func runExportCmd(cmd *cobra.Command, args []string) {
	format, _ := cmd.Flags().GetString("format")
	list, _ := cmd.Flags().GetBool("list")
	sessionID, _ := cmd.Flags().GetString("session")
	limit, _ := cmd.Flags().GetInt("limit")

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	if list {
		runs, err := s.ListRuns(cmd.Context(), store.RunListParams{
			SessionID: sessionID,
			Limit:     limit,
		})
		if err != nil {
			exitErr("list runs", err)
		}
		b, _ := json.MarshalIndent(runs, "", "  ")
		fmt.Println(string(b))
		return
	}

	var run *store.Run
	if len(args) > 0 {
		run, err = s.GetRun(cmd.Context(), args[0])
	} else {
		run, err = s.LatestRun(cmd.Context())
	}
	if err != nil {
		exitErr("export", err)
	}

	if format == "yaml" {
		var doc profile.Export
		if err := json.Unmarshal(run.Payload, &doc); err != nil {
			exitErr("decode run", err)
		}
		printDoc("yaml", &doc)
		return
	}

	os.Stdout.Write(run.Payload)
	fmt.Println()
}
