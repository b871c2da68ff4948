package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/wisdompenai/wisdompen/internal/version"
)

func init() {
	godotenv.Load()
}

func main() {
	root := &cobra.Command{
		Use:   "wisdompen",
		Short: "Conversational relay server with media transcription",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Print build version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(version.GetInfo())
		},
	}

	root.AddCommand(serveCmd, versionCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
