package main

import "github.com/vpntools/protonctl/cmd/protonctl/cmd"

func main() {
	cmd.Execute()
}
