package main

import "github.com/derickschaefer/tubestats/cmd"

func main() {
	cmd.Execute()
}
