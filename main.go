package main

import (
	"github.com/evftp/evftp/cmd"
	"github.com/evftp/evftp/pprof"
)

func main() {
	pprof.StartPP()
	cmd.Execute()
}
