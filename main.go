package main

import "github.com/zjrosen/chime/cmd"

func main() {
	cmd.Execute()
}
