package main

import "example.com/mci/services/delivery/cmd"

func main() {
	cmd.Execute()
}
