package main

import (
	"os"

	"github.com/tech-arch1tect/newsdesk/app"
	"go.uber.org/zap"
)

func main() {
	// Used until the application has built its configured logger.
	bootstrap, err := zap.NewProduction()
	if err != nil {
		panic(err)
	}
	defer func() { _ = bootstrap.Sync() }()

	builder := app.NewApp().WithAutoConfig()

	if len(os.Args) > 1 && os.Args[1] == "openapi" {
		a, err := builder.WithoutJobs().Build()
		if err != nil {
			bootstrap.Fatal("failed to build application", zap.Error(err))
		}
		out, err := a.Document().YAML()
		if err != nil {
			bootstrap.Fatal("failed to render OpenAPI document", zap.Error(err))
		}
		if _, err := os.Stdout.Write(out); err != nil {
			bootstrap.Fatal("failed to write OpenAPI document", zap.Error(err))
		}
		return
	}

	a, err := builder.Build()
	if err != nil {
		bootstrap.Fatal("failed to build application", zap.Error(err))
	}
	err = a.Run()
	_ = a.Logger().Sync()
	if err != nil {
		bootstrap.Fatal("application exited with error", zap.Error(err))
	}
}
