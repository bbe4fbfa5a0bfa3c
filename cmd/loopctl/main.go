package main

import (
	"fmt"
	"os"

	"loopctl/internal/cli"
	"loopctl/internal/cli/commands"
)

func main() {
	root := cli.NewRootCommand()
	err := root.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
	}
	os.Exit(commands.ExitCode(err))
}
