package main

import (
	"fmt"
	"os"

	"go.uber.org/zap"

	wickeditor "wick_editor"
	"wick_editor/logging"
)

func main() {
	cfg, err := wickeditor.LoadAppConfig(os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(2)
	}

	if err := logging.Init(logging.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		fmt.Fprintf(os.Stderr, "logging: %v\n", err)
		os.Exit(1)
	}
	defer logging.Sync()

	s := wickeditor.New(wickeditor.WithConfig(cfg))
	if err := s.Start(); err != nil {
		logging.Fatal("server error", zap.Error(err))
	}
}
