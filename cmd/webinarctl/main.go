// Command webinarctl is the operator CLI for the webinar livestream server.
package main

import (
	"fmt"
	"os"

	"github.com/aura-webinar/livestream/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "webinarctl:", err)
		os.Exit(1)
	}
}
