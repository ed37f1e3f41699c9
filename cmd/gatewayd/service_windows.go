//go:build windows

package main

import (
	"context"

	"github.com/kardianos/service"

	"github.com/linkedingateway/gateway/app"
	"github.com/linkedingateway/gateway/internal/gatewayapp"
)

// winProgram adapts gatewayapp.Hooks to the kardianos/service.Interface so
// the gateway can run under the Windows Service Control Manager.
type winProgram struct {
	cancel func()
}

func (p *winProgram) Start(s service.Service) error {
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel

	go func() {
		_ = app.Run(ctx, gatewayapp.Hooks)
	}()

	return nil
}

func (p *winProgram) Stop(s service.Service) error {
	if p.cancel != nil {
		p.cancel()
	}
	return nil
}

// runAsService installs/controls/runs the gateway as a Windows service when
// invoked with a service subcommand (install, uninstall, start, stop), or
// runs it directly under the SCM when launched by the SCM itself. It
// returns handled=false when cmd isn't a recognized service subcommand, so
// main can fall through to running in the foreground.
func runAsService(cmd string) (handled bool, err error) {
	svcConfig := &service.Config{
		Name:        "linkedin-gateway",
		DisplayName: "LinkedIn API Gateway",
		Description: "Proxies LinkedIn Voyager/GraphQL requests for the browser extension.",
	}

	prg := &winProgram{}
	s, err := service.New(prg, svcConfig)
	if err != nil {
		return true, err
	}

	switch cmd {
	case "install", "uninstall", "start", "stop":
		return true, service.Control(s, cmd)
	case "run-service":
		return true, s.Run()
	default:
		return false, nil
	}
}
