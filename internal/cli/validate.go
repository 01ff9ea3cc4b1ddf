package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/leandeep/marker-engine/internal/catalog"
)

func init() {
	cmd := &cobra.Command{
		Use:   "validate [path]",
		Short: "Validate marker definitions",
		Long: "Validate a definition file or directory without importing.\n" +
			"With no path, validates the markers currently in the store.",
		Args: cobra.MaximumNArgs(1),
		Run:  runValidate,
	}

	RootCmd.AddCommand(cmd)
}

func runValidate(cmd *cobra.Command, args []string) {
	path := ""
	if len(args) > 0 {
		path = args[0]
	}

	defs, err := loadDefinitions(cmd, path)
	if err != nil {
		exitErr("load definitions", err)
	}

	cat, err := catalog.Load(defs)
	if err != nil {
		exitErr("validate", err)
	}

	fmt.Printf(`{"ok":true,"markers":%d,"version":%q}`+"\n", cat.Size(), cat.Version())
}
