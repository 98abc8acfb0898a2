package main

import "github.com/Charles-JpEG/pysh/cmd"

func main() {
	cmd.Execute()
}
