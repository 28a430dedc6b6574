// Command xagent-wire drives the wire client from the shell: one-shot and
// streamed completions, model listings, and a local echo vendor to point
// them at.
package main

import (
	"os"

	"github.com/burdiyan/go/mainutil"
	_ "github.com/joho/godotenv/autoload"
)

func main() {
	mainutil.Run(func() error {
		ctx := mainutil.TrapSignals()
		return run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	})
}
