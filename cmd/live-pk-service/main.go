// Package main is the live-pk-service entry point (HTTP + WebSocket).
package main

import (
	"log"

	"github.com/psds-microservice/live-pk-service/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
