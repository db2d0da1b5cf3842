package main

import (
	"os"

	"github.com/trvlai/lawyerai/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
