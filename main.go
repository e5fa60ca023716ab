package main

import "github.com/lifeforge/docchat/cmd"

func main() {
	cmd.Execute()
}
