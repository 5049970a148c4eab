package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/sheetload/internal/core"
	"github.com/JonMunkholm/sheetload/internal/pipeline"
)

var (
	errorLabel = color.New(color.FgHiRed, color.Bold).SprintFunc()
	hint       = color.New(color.FgHiBlack).SprintFunc()
	phaseLabel = color.New(color.FgCyan).SprintFunc()
)

// printError writes err to stderr with its support code and suggested action.
func printError(cmd *cobra.Command, err error) {
	msg := core.MapError(err)
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "%s [%s] %v\n", errorLabel("error:"), msg.Code, err)
	if msg.Action != "" {
		fmt.Fprintf(w, "       %s\n", hint(msg.Action))
	}
}

// progressPrinter reports each phase change of a run on stderr.
func progressPrinter(cmd *cobra.Command) func(pipeline.Progress) {
	var last pipeline.Phase
	w := cmd.ErrOrStderr()
	return func(p pipeline.Progress) {
		if p.Phase == pipeline.PhaseInserting && p.TotalRows > 0 && p.CurrentRow > 0 {
			fmt.Fprintf(w, "\r%s %d/%d", phaseLabel(p.Phase), p.CurrentRow, p.TotalRows)
			last = p.Phase
			return
		}
		if p.Phase == last {
			return
		}
		if last == pipeline.PhaseInserting {
			fmt.Fprintln(w)
		}
		last = p.Phase
		fmt.Fprintf(w, "%s...\n", phaseLabel(p.Phase))
	}
}

// errRunFailed is returned by commands whose run reported errors; the
// report already printed them.
type errRunFailed struct{ errors []string }

func (e errRunFailed) Error() string {
	if len(e.errors) == 0 {
		return "run failed"
	}
	return e.errors[0]
}
