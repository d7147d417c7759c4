package main

import "github.com/DrSkyle/tagguard/cmd/tagguard/commands"

func main() {
	commands.Execute()
}
