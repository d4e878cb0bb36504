package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"kubegems.io/hubx/cmd/hubx/model"
)

const ErrExitCode = 1

func main() {
	// a .env file in the working directory may carry HUBX_TOKEN and friends
	_ = godotenv.Load()

	cmd := model.NewHubxCmd()
	cmd.AddCommand(NewServeCmd())
	if err := cmd.Execute(); err != nil {
		reported := model.ReportedError{}
		if !errors.As(err, &reported) {
			fmt.Fprintln(os.Stderr, "Error:", err.Error())
		}
		os.Exit(ErrExitCode)
	}
}
