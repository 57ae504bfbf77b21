package main

import (
	"github.com/ledgerlabs/snapstream/cmd/snapstream/commands"
)

// version is overridden during the build with the go linker
var version = "dev"

func main() {
	commands.SetVersion(version)
	commands.Execute()
}
