package main

import "github.com/example/workshop-booking/cmd"

func main() {
	cmd.Execute()
}
