package main

import "github.com/sparkify/dwhctl/cmd"

func main() {
	cmd.Execute()
}
