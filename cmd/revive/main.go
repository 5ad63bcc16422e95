package main

import (
	"github.com/pixel-revival/revive/cmd/revive/cmd"
)

func main() {
	cmd.Execute()
}
