//go:build wireinject
// +build wireinject

package main

import (
	"github.com/meikanc/mpesa-backend/internal/biz"
	"github.com/meikanc/mpesa-backend/internal/conf"
	"github.com/meikanc/mpesa-backend/internal/data"

	"github.com/google/wire"
)

// wireApp init the cron application.
func wireApp(*conf.Bootstrap) (*CronApp, func(), error) {
	panic(wire.Build(
		newLogger,
		data.ProviderSet,
		biz.ProviderSet,
		wire.Struct(new(CronApp), "*"),
	))
}
