package main

import (
	"sourcewatch/internal/cli"
)

func main() {
	cli.Execute()
}
