package main

import "github.com/moyoez/scangate/cli"

func main() {
	cli.Execute()
}
