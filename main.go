package main

import "github.com/agentic-research/xmindctl/cmd"

func main() {
	cmd.Execute()
}
