package main

import (
	"fmt"
	"os"

	"surajya/cli"
)

func main() {
	if err := cli.RootCmd(cli.DefaultEnv()).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
