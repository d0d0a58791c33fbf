//go:build ignore

// replay feeds a JSON transcript of tool calls through one session and prints
// the diagnostics per call plus the final state. Useful for reproducing a
// model conversation offline.
//
// Run with: go run tools/replay.go --engine graph-xml --file transcript.json
// The transcript is a JSON array of tool call objects, e.g.
//
//	[{"op":{"kind":"replace","content":"<graph><node id=\"a\"/></graph>"}},
//	 {"op":{"kind":"delete","ids":["a"]}}]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	sdk "github.com/atlas-foundry/sketch-go-sdk/sketch"
)

func main() {
	engine := flag.String("engine", "graph-xml", "engine id to bind the session to")
	file := flag.String("file", "", "transcript file with a JSON array of tool calls")
	export := flag.String("export", "", "optional export target for the final state (dot, mermaid, ...)")
	flag.Parse()
	if *file == "" {
		fmt.Fprintln(os.Stderr, "missing --file")
		os.Exit(1)
	}
	body, err := os.ReadFile(*file)
	if err != nil {
		fatal(err)
	}
	var calls []sdk.ToolCall
	if err := json.Unmarshal(body, &calls); err != nil {
		fatal(fmt.Errorf("parse transcript: %w", err))
	}

	session := sdk.NewSession(*engine)
	ctx := context.Background()
	for i, call := range calls {
		diags := session.Dispatch(ctx, call)
		out, _ := json.Marshal(diags)
		fmt.Printf("call %d: %s\n", i, out)
	}

	state := session.CurrentState()
	fmt.Printf("final: format=%s version=%d truncated=%v\n", state.Format, state.Version, state.Truncated)
	fmt.Println(state.Content)

	if *export != "" {
		rendered, err := session.ExportAs(*export)
		if err != nil {
			fatal(err)
		}
		fmt.Printf("export %s:\n%s\n", *export, rendered)
	}
}

func fatal(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(1)
}
