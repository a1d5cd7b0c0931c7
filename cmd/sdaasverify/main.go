package main

import (
	"errors"
	"log"
	"os"

	"sdaasverify/cmd/sdaasverify/cli"
)

type ExitCoder interface {
	error
	ExitCode() int
}

func main() {
	log.SetFlags(0)

	if err := cli.New().Execute(); err != nil {
		var ec ExitCoder
		if errors.As(err, &ec) {
			if msg := err.Error(); msg != "" {
				log.Printf("sdaasverify: %s", msg)
			}
			os.Exit(ec.ExitCode())
		}

		log.Fatalf("sdaasverify: %v", err)
	}
}
