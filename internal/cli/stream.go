package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leandeep/marker-engine/internal/catalog"
	"github.com/leandeep/marker-engine/internal/profile"
)

func init() {
	cmd := &cobra.Command{
		Use:   "stream",
		Short: "Analyze a stream of chunks from stdin",
		Long: "Read stdin line by line, feeding each line as one chunk. Every\n" +
			"activation, emotion change, and skipped chunk is emitted as a JSON\n" +
			"line; EOF emits a final {\"type\":\"complete\"} line with the result.",
		Run: runStream,
	}

	cmd.Flags().String("defs", "", "Definition file or directory (default: markers from the store)")
	cmd.Flags().Bool("watch", false, "Reload the catalog when --defs changes")

	RootCmd.AddCommand(cmd)
}

func runStream(cmd *cobra.Command, args []string) {
	defsPath, _ := cmd.Flags().GetString("defs")
	watch, _ := cmd.Flags().GetBool("watch")

	if watch && defsPath == "" {
		exitErr("stream", fmt.Errorf("--watch requires --defs"))
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

	if watch {
		w, err := catalog.NewWatcher(holder, defsPath, logger)
		if err != nil {
			exitErr("watch definitions", err)
		}
		w.Start(cmd.Context())
		defer w.Stop()
	}

	id := e.NewSessionID()
	if err := e.StartSession(id); err != nil {
		exitErr("start session", err)
	}

	ch, err := e.Subscribe(id, 0)
	if err != nil {
		exitErr("subscribe", err)
	}

	enc := json.NewEncoder(os.Stdout)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range ch {
			enc.Encode(u)
		}
	}()

	// Offsets track the raw input stream so spans in the output line up
	// with what was piped in.
	var text strings.Builder
	offset := 0
	scanner := bufio.NewScanner(os.Stdin)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		text.WriteString(line)
		text.WriteByte('\n')

		if strings.TrimSpace(line) != "" {
			if err := e.FeedAt(cmd.Context(), id, line+"\n", offset); err != nil {
				exitErr("feed chunk", err)
			}
		}
		offset += len(line) + 1
	}
	if err := scanner.Err(); err != nil {
		exitErr("read stdin", err)
	}

	// Collect runs on the session worker, after every queued chunk.
	res, err := e.Collect(id, text.String())
	if err != nil {
		exitErr("collect result", err)
	}

	e.Unsubscribe(id, ch)
	<-done

	complete := struct {
		Type   string          `json:"type"`
		Result *profile.Export `json:"result"`
	}{"complete", profile.BuildExport(res, holder.Current())}
	enc.Encode(complete)
}
