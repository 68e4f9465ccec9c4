package main

import (
	"context"
	"os"

	"github.com/yigit/libris/internal/pkg/logger"
)

// @title Libris API
// @version 1.0
// @description Library catalog and circulation service

// @BasePath /api/v1
// @schemes http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT token for authorization, prefixed with "Bearer "

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		logger.Error().Err(err).Msg("Command failed")
		os.Exit(1)
	}
}
