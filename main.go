package main

import "github.com/maxvaer/hostwatch/cmd"

func main() {
	cmd.Execute()
}
