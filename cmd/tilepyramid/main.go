// Command tilepyramid runs the task-graph tile pyramid engine's CLI.
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/MeKo-Tech/tilepyramid/internal/cmd"
	"github.com/MeKo-Tech/tilepyramid/internal/executor"
)

// internalWorkerFlag is the hidden re-exec mode the process executor
// backend uses to run registered tasks in a subprocess: see
// internal/executor/processes.go and registry.go.
const internalWorkerFlag = "--internal-worker"

func main() {
	if len(os.Args) > 1 && os.Args[1] == internalWorkerFlag {
		runWorker()
		return
	}
	cmd.Execute()
}

func runWorker() {
	in := bufio.NewReader(os.Stdin)
	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	decode := func(v any) error {
		line, err := in.ReadString('\n')
		if err != nil {
			return err
		}
		return json.Unmarshal([]byte(line), v)
	}
	encode := func(v any) error {
		b, err := json.Marshal(v)
		if err != nil {
			return err
		}
		if _, err := out.Write(append(b, '\n')); err != nil {
			return err
		}
		return out.Flush()
	}

	if err := executor.RunWorker(context.Background(), decode, encode); err != nil {
		fmt.Fprintln(os.Stderr, "worker:", err)
		os.Exit(1)
	}
}
