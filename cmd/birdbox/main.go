// Command birdbox runs the doorbell-to-WebRTC gateway.
package main

import (
	"fmt"
	"os"

	"github.com/RJ/birdbox/internal/core"
)

func main() {
	c, err := core.New(os.Getenv)
	if err != nil {
		fmt.Printf("ERR: %s\n", err)
		os.Exit(1)
	}
	c.Wait()
}
