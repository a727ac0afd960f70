package main

import "github.com/chatloom/chatloom/internal/cli"

func main() {
	cli.Execute()
}
