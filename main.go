package main

import "github.com/shaharia-lab/inquiry-dispatch/cmd"

func main() {
	cmd.Execute()
}
