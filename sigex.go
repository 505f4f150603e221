package main

import (
	"context"
	"flag"
	"fmt"

	"github.com/zeromicro/go-zero/rest"

	"sigex/internal/cli"
	"sigex/internal/config"
	"sigex/internal/handler"
	"sigex/internal/svc"
)

var configFile = flag.String("f", "etc/sigex.yaml", "the config file")

func main() {
	flag.Parse()

	cfg := config.MustLoad(*configFile)
	cli.LogConfigSummary(cfg)

	server := rest.MustNewServer(cfg.RestConf)
	defer server.Stop()

	ctx := svc.NewServiceContext(*cfg)
	handler.RegisterHandlers(server, ctx)

	if ctx.Dispatcher != nil {
		ctx.Dispatcher.Start(context.Background())
		defer ctx.Dispatcher.Stop()
	}

	fmt.Printf("Starting server at %s:%d...\n", cfg.Host, cfg.Port)
	server.Start()
}
