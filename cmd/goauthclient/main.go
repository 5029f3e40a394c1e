package main

import "github.com/MrEthical07/goAuthClient/cmd/goauthclient/cmd"

func main() {
	cmd.Execute()
}
