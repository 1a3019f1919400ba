package main

import "routerwatch/cmd"

func main() {
	cmd.Execute()
}
