package main

import (
	"github.com/BioHazard786/Questroom/cli/cmd"
	"github.com/BioHazard786/Questroom/cli/internal/logging"
)

func main() {
	logging.Init()
	cmd.Execute()
}
