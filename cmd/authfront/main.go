package main

import "github.com/nubauth/authfront/cmd/authfront/cmd"

func main() {
	cmd.Execute()
}
