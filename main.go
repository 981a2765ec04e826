package main

import "github.com/mhrabal/photovault/cmd"

func main() {
	cmd.Execute()
}
