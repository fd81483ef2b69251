package main

import "github.com/tankwatch/tank-guard/cmd/door-guard-ctl/cmd"

func main() {
	cmd.Execute()
}
