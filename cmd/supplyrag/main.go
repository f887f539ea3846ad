package main

import "supplyrag/internal/cli"

func main() {
	cli.Execute()
}
