package main

import "forum-keeper/cmd"

func main() {
	cmd.Execute()
}
