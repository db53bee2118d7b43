package main

import "nathanbeddoewebdev/stackgate/cmd"

func main() {
	cmd.Execute()
}
