package main

import "github.com/pkuleshov/langaudit/internal/cli"

func main() {
	cli.Main()
}
