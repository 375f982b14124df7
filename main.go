package main

import "github.com/jmehdipour/titletester/cmd"

func main() {
	cmd.Execute()
}
