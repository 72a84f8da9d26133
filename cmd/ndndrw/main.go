package main

import "os"

func main() {
	if err := CmdNdndrw.Execute(); err != nil {
		os.Exit(1)
	}
}
