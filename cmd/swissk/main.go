package main

import "github.com/OSchengdu/swissK-agent/internal/cli"

func main() {
	cli.Execute()
}
