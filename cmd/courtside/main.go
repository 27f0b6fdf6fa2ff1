package main

import (
	"courtside/cmd/cmd"
	"courtside/internal/logger"
)

func main() {
	logger.Init()
	cmd.Execute()
}
