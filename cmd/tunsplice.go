package main

import (
	"os"

	"github.com/sirupsen/logrus"

	"tunsplice/pkg/config"
	"tunsplice/pkg/routing"
	"tunsplice/pkg/splice"
	"tunsplice/pkg/tun"
)

const (
	version = "v0.1.0"
)

func main() {
	logrus.Infof("Running tunsplice %v", version)
	conf, err := config.FromCmdline()
	if err != nil {
		logrus.WithError(err).Error("Failed to parse config file")
		os.Exit(1)
	}

	level, err := logrus.ParseLevel(conf.LogLevel)
	if err != nil {
		logrus.WithError(err).Errorf("Invalid log level %v", conf.LogLevel)
		os.Exit(1)
	}
	logrus.SetLevel(level)

	first := tun.New(
		tun.WithTemplate(conf.Devices[0].Name),
		tun.WithMTU(conf.Devices[0].MTU),
	)
	second := tun.New(
		tun.WithTemplate(conf.Devices[1].Name),
		tun.WithMTU(conf.Devices[1].MTU),
	)

	var opts []splice.Option
	if conf.RoutingEnabled() {
		opts = append(opts, splice.WithProvisioner(routing.New(conf)))
	}
	engine := splice.New(conf.MaxBufferSize, first, second, opts...)

	ctx, cancel := splice.SetupSignals()
	defer cancel()

	err = engine.Run(ctx)
	if err != nil {
		logrus.WithError(err).Error("Failure in running the splice engine")
		os.Exit(1)
	}
}
