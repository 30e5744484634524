package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/wakilihq/paygate/internal/clock"
	"github.com/wakilihq/paygate/internal/config"
	"github.com/wakilihq/paygate/internal/daraja"
	"github.com/wakilihq/paygate/internal/logger"
	"github.com/wakilihq/paygate/internal/paysession"
	"github.com/wakilihq/paygate/internal/server"
	"github.com/wakilihq/paygate/internal/telemetry"
	"github.com/wakilihq/paygate/internal/vault"
	"github.com/wakilihq/paygate/internal/verification"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		logger.Module,
		clock.Module,
		telemetry.Module,
		fx.Provide(RegisterSnowflake),

		// Functional domains
		vault.Module,
		paysession.Module,
		daraja.Module,
		verification.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
