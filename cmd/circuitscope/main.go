package main

import "github.com/opencircuitlab/circuitscope/cmd/circuitscope/cmd"

func main() {
	cmd.Execute()
}
