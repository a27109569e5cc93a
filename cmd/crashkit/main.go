package main

import "github.com/tmcallister/crashkit/internal/cli"

func main() {
	cli.Execute()
}
