package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pengsrc/go-shared/check"
	"github.com/spf13/cobra"

	"github.com/evftp/evftp/config"
	"github.com/evftp/evftp/constants"
	"github.com/evftp/evftp/logger"
	"github.com/evftp/evftp/server"
)

var (
	versionFlag bool
	cfgFileFlag string
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   constants.Name,
	Short: "An event-driven FTP server on a single polling goroutine.",
	Long:  "An event-driven FTP server on a single polling goroutine.",
	Run: func(cmd *cobra.Command, args []string) {
		if versionFlag {
			fmt.Fprintf(os.Stdout, "EvFTP version %s\n", constants.Version)
			return
		}

		err := logger.SetUpLog()
		check.ErrorForExit(constants.Name, err)

		c := config.LoadConfigFromFilepath(cfgFileFlag)
		s, err := server.NewFTPServer(c)
		check.ErrorForExit("server init error", err)
		StartServer(s)
	},
}

// StartServer runs s until a SIGTERM.
func StartServer(s server.Server) {
	s.Start()
	go signalHandler(s)
	s.Serve()
}

// Execute adds all child commands to the root command sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		check.ErrorForExit(constants.Name, err)
		os.Exit(-1)
	}
}

func init() {
	RootCmd.PersistentFlags().BoolVarP(&versionFlag, "version", "v", false, "Show version")
	RootCmd.PersistentFlags().StringVarP(&cfgFileFlag, "config", "c", "", "Specify config file")
}

func signalHandler(s server.Server) {
	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM)
	for {
		switch <-ch {
		case syscall.SIGTERM:
			s.Stop()
			return
		}
	}
}
