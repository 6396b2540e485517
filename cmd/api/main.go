package main

// @title codex-gateway APIs
// @version 1.0
// @description OpenAI-compatible HTTP gateway running the codex CLI with bounded concurrency.

// @license.name Apache 2.0
// @license.url http://www.apache.org/licenses/LICENSE-2.0.html

// @host localhost:8000
// @BasePath /
// @schemes http

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
import (
	"fmt"
	"os"

	_ "codex-gateway/docs"
	protocol "codex-gateway/protocal"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codex-gateway",
		Short:         "OpenAI-compatible gateway for the codex CLI",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newServeCmd(), newVersionCmd())
	return root
}

func newServeCmd() *cobra.Command {
	var opts protocol.Options
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			err := protocol.ServeHTTP(opts)
			if err != nil {
				logrus.Println(err)
			}
			return err
		},
	}
	cmd.Flags().StringVar(&opts.Env, "env", "", "the environment to use")
	cmd.Flags().StringVar(&opts.ConfigPath, "config-path", "./configs", "directory containing config.yaml")
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	}
}
