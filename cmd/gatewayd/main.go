package main

import (
	"context"
	"log"
	"os"

	"github.com/linkedingateway/gateway/app"
	"github.com/linkedingateway/gateway/internal/gatewayapp"
)

func main() {
	cmd := ""
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	if handled, err := runAsService(cmd); handled {
		if err != nil {
			log.Fatal(err)
		}
		return
	}

	if err := app.Run(context.Background(), gatewayapp.Hooks); err != nil {
		log.Fatal(err)
	}
}
