package main

import "github.com/ngld/plugin-builder/cmd"

func main() {
	cmd.Execute()
}
