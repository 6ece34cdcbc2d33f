package main

import (
	"nexuszip/cmd/nxz/commands"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := commands.Execute(); err != nil {
		log.Fatal(err)
	}
}
