package main

import (
	"context"
	"log"
	"os"

	"github.com/EiDHindY/vaulture/internal/app"
	"github.com/EiDHindY/vaulture/internal/buildinfo"
	"github.com/EiDHindY/vaulture/internal/cli"
	"github.com/EiDHindY/vaulture/internal/config"
)

func main() {

	buildinfo.PrintBuildData(os.Stdout)

	// vaulture store-secret <name>
	if len(os.Args) > 1 && os.Args[1] == "store-secret" {
		var name string
		if len(os.Args) > 2 {
			name = os.Args[2]
		}
		if err := cli.StoreSecret(name, os.Stdout, config.StoreSecret); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("%v", err)
	}

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer a.Close()

	if err := a.Run(ctx); err != nil {
		log.Printf("%v", err)
	}
}
