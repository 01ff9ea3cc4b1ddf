package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/leandeep/marker-engine/internal/profile"
)

func init() {
	cmd := &cobra.Command{
		Use:   "analyze [text]",
		Short: "Analyze text against the marker catalog",
		Long: "Analyze text in one pass: segment it, match atomics, cascade rules,\n" +
			"and print the result with its derived profile. Text can be a positional\n" +
			"arg or piped via stdin.",
		Run: runAnalyze,
	}

	cmd.Flags().String("defs", "", "Definition file or directory (default: markers from the store)")
	cmd.Flags().Bool("save", false, "Persist the run and print its id")
	cmd.Flags().StringP("format", "f", "json", "Output format: json or yaml")

	RootCmd.AddCommand(cmd)
}

func readText(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	stat, _ := os.Stdin.Stat()
	if (stat.Mode() & os.ModeCharDevice) == 0 {
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}
	return "", nil
}

func runAnalyze(cmd *cobra.Command, args []string) {
	defsPath, _ := cmd.Flags().GetString("defs")
	save, _ := cmd.Flags().GetBool("save")
	format, _ := cmd.Flags().GetString("format")

	text, err := readText(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	if strings.TrimSpace(text) == "" {
		exitErr("analyze", fmt.Errorf("text is required (positional arg or stdin)"))
	}

	defs, err := loadDefinitions(cmd, defsPath)
	if err != nil {
		exitErr("load definitions", err)
	}

	e, holder, err := newEngine(defs)
	if err != nil {
		exitErr("load catalog", err)
	}
	defer e.Close()

	res, err := e.Analyze(cmd.Context(), text)
	if err != nil {
		exitErr("analyze", err)
	}

	doc := profile.BuildExport(res, holder.Current())

	if save {
		payload, err := json.Marshal(doc)
		if err != nil {
			exitErr("encode run", err)
		}

		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		run, err := s.SaveRun(cmd.Context(), res, payload)
		if err != nil {
			exitErr("save run", err)
		}

		logger.Info("run saved",
			zap.String("run_id", run.ID),
			zap.String("session_id", run.SessionID),
			zap.Int("events", run.Events))
		fmt.Printf(`{"ok":true,"run_id":%q,"events":%d}`+"\n", run.ID, run.Events)
		return
	}

	printDoc(format, doc)
}

// printDoc writes a document to stdout as indented JSON or YAML.
func printDoc(format string, doc any) {
	switch format {
	case "yaml":
		b, err := yaml.Marshal(doc)
		if err != nil {
			exitErr("encode yaml", err)
		}
		fmt.Print(string(b))
	default:
		b, err := json.MarshalIndent(doc, "", "  ")
		if err != nil {
			exitErr("encode json", err)
		}
		fmt.Println(string(b))
	}
}
