package main

import "brdagent/cmd"

func main() {
	cmd.Execute()
}
