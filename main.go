package main

import "github.com/bub-build/bub/cmd"

func main() {
	cmd.Execute()
}
