package main

import (
	"os"

	hellochatcmder "github.com/papercomputeco/hellochat/cmd/hellochat"
)

func main() {
	cmd := hellochatcmder.NewHellochatCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
