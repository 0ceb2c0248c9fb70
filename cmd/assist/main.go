package main

import "code-assistant/internal/cli"

func main() {
	cli.Execute()
}
