package main

import "github.com/mcoot/rostersync/internal/cli"

func main() {
	cli.Execute()
}
