package main

import (
	"os"

	"github.com/jessieweiyi/aws-genai-conversational-rag-reference/internal/cli"
)

func main() {
	if err := cli.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
