package main

import "github.com/jasperwreed/unip/internal/cli"

func main() {
	cli.Execute()
}
