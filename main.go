package main

import "netpilot/cmd"

func main() {
	cmd.Execute()
}
