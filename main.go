package main

import "github.com/frahmantamala/attendance-management/cmd"

func main() {
	cmd.Execute()
}
