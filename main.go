package main

import "github.com/nsyszr/relay/cmd"

func main() {
	cmd.Execute()
}
