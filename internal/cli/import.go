package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/marker"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import [files...]",
		Short: "Import marker definitions",
		Long: "Import marker definitions from JSON or YAML (stdin or files).\n" +
			"The whole batch is validated against the markers already stored;\n" +
			"one invalid definition rejects the entire import.",
		Run: runImport,
	}

	cmd.Flags().Bool("dry-run", false, "Validate without writing")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	var incoming []marker.Definition
	if len(args) == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			exitErr("read stdin", err)
		}
		incoming, err = catalog.DecodeDefinitions(data, "stdin")
		if err != nil {
			exitErr("import", err)
		}
	} else {
		for _, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				exitErr("read file", err)
			}
			defs, err := catalog.DecodeDefinitions(data, path)
			if err != nil {
				exitErr("import", err)
			}
			incoming = append(incoming, defs...)
		}
	}
	if len(incoming) == 0 {
		exitErr("import", fmt.Errorf("no definitions found in input"))
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	existing, err := s.LoadDefinitions(cmd.Context())
	if err != nil {
		exitErr("load existing markers", err)
	}

	// Validate the store as it would look after the import.
	merged, imported, updated := mergeDefinitions(existing, incoming)
	cat, err := catalog.Load(merged)
	if err != nil {
		exitErr("validate", err)
	}

	if dryRun {
		fmt.Printf(`{"ok":true,"dry_run":true,"imported":%d,"updated":%d}`+"\n", imported, updated)
		return
	}

	// Persist the validated copies; their dependency sets include the
	// ids the activation rules reference.
	incomingIDs := make(map[string]bool, len(incoming))
	for _, d := range incoming {
		incomingIDs[d.MarkerID] = true
	}
	var toSave []marker.Definition
	for _, d := range cat.Definitions() {
		if incomingIDs[d.MarkerID] {
			toSave = append(toSave, *d)
		}
	}

	res, err := s.UpsertMarkers(cmd.Context(), toSave)
	if err != nil {
		exitErr("import", err)
	}

	logger.Info("markers imported",
		zap.Int("imported", res.Imported),
		zap.Int("updated", res.Updated))
	fmt.Printf(`{"ok":true,"imported":%d,"updated":%d}`+"\n", res.Imported, res.Updated)
}

// mergeDefinitions overlays incoming definitions onto the existing set
// by marker id, preserving existing order and appending new ids in
// input order.
func mergeDefinitions(existing, incoming []marker.Definition) (merged []marker.Definition, imported, updated int) {
	byID := make(map[string]int, len(existing))
	for i, d := range existing {
		byID[d.MarkerID] = i
	}
	merged = append(merged, existing...)
	for _, d := range incoming {
		if i, ok := byID[d.MarkerID]; ok {
			merged[i] = d
			updated++
			continue
		}
		byID[d.MarkerID] = len(merged)
		merged = append(merged, d)
		imported++
	}
	return merged, imported, updated
}
