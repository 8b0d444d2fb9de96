package main

import "github.com/BioHazard786/beamshare/internal/command"

func main() {
	command.Execute()
}
