package main

import (
	"context"
	"log"

	"github.com/markeidelman/clinicweb/app"
	"github.com/markeidelman/clinicweb/internal/site"
)

func main() {
	if err := app.Run(context.Background(), site.Hooks); err != nil {
		log.Fatal(err)
	}
}
