package main

import (
	"github.com/embedcam/csirx/internal/api"
	"github.com/embedcam/csirx/internal/app"
	"github.com/embedcam/csirx/internal/capture"
	"github.com/embedcam/csirx/pkg/shell"
)

func main() {
	app.Init() // init config and logs

	api.Init()     // init HTTP API server
	capture.Init() // init receiver and capture pipeline

	shell.RunUntilSignal()
}
