package main

import "github.com/thewriterben/wildcam-mesh/cmd"

func main() {
	cmd.Execute()
}
