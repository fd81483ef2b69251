package main

import "github.com/tankwatch/tank-guard/cmd/door-guard/cmd"

func main() {
	cmd.Execute()
}
