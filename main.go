package main

import (
	"log"

	"github.com/kmetro/induction/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
