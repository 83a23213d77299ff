// Command hermes-agent is the gateway's single entrypoint binary.
package main

import (
	"os"

	"github.com/scarlettdetekelala/hermes-agent/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
