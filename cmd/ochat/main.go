package main

import (
	"os"

	"github.com/zhouzirui/ochat/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
