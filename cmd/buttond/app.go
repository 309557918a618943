package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"

	"devicecore-go/bus"
	"devicecore-go/device"
	"devicecore-go/devicetree"
	"devicecore-go/drivers/button"
	"devicecore-go/services/poller"
	"devicecore-go/x/logx"
)

const (
	flagBoard    = "board"
	flagInterval = "interval"
	flagCount    = "count"
	flagLogLevel = "log-level"
)

func newApp(reg *device.Registry, out io.Writer) *cli.App {
	return &cli.App{
		Name:  "buttond",
		Usage: "boot devices from a board file and poll buttons",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    flagBoard,
				Aliases: []string{"b"},
				Usage:   "load the hardware description from `FILE`",
				Value:   "boards/host.hcl",
				EnvVars: []string{"BUTTOND_BOARD"},
			},
			&cli.StringFlag{
				Name:    flagLogLevel,
				Usage:   "debug, info, warn or error",
				Value:   "info",
				EnvVars: []string{"BUTTOND_LOG_LEVEL"},
			},
			&cli.DurationFlag{
				Name:  flagInterval,
				Usage: "sampling period",
				Value: poller.DefaultInterval,
			},
			&cli.IntFlag{
				Name:  flagCount,
				Usage: "stop after N rounds (0 runs until interrupted)",
			},
		},
		Before: func(c *cli.Context) error {
			l, err := logx.New(c.String(flagLogLevel))
			if err != nil {
				return errors.Wrap(err, "log level")
			}
			logx.SetDefault(l)
			return nil
		},
		Action: func(c *cli.Context) error {
			return pollAction(c, reg, out)
		},
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "boot devices and print their state",
				Action: func(c *cli.Context) error {
					if err := boot(c.Context, reg, c.String(flagBoard)); err != nil {
						return err
					}
					for _, d := range reg.Devices() {
						line := fmt.Sprintf("%-12s %-16s %-12s %s", d.Name(), d.Compatible(), d.Level(), d.State())
						if err := d.Err(); err != nil {
							line += "  " + err.Error()
						}
						fmt.Fprintln(out, line)
					}
					return nil
				},
			},
		},
	}
}

// boot loads the board, defines its devices and initializes them. Bind and
// init failures are logged and left to the device state; only an unreadable
// board is fatal.
func boot(ctx context.Context, reg *device.Registry, board string) error {
	log := logx.L().Named("buttond")
	tree, err := devicetree.Load(board)
	if err != nil {
		return err
	}
	if err := device.Populate(reg, tree); err != nil {
		log.Warnw("some nodes were not bound", "err", err)
	}
	if err := reg.InitAll(ctx); err != nil {
		log.Warnw("some devices failed to initialize", "err", err)
	}
	return nil
}

func pollAction(c *cli.Context, reg *device.Registry, out io.Writer) error {
	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := boot(ctx, reg, c.String(flagBoard)); err != nil {
		return err
	}

	b := bus.NewBus(64)
	console := b.NewConnection("console")
	sub := console.Subscribe(bus.T("button", "#"))
	done := make(chan struct{})
	go func() {
		defer close(done)
		for m := range sub.Channel() {
			switch p := m.Payload.(type) {
			case poller.Event:
				fmt.Fprintf(out, "%s state=%d\n", p.Device, p.State)
			case poller.Fault:
				fmt.Fprintf(out, "%s error=%s\n", p.Device, p.Code)
			}
		}
	}()

	s := &poller.Service{
		Registry: reg,
		Conn:     b.NewConnection("poller"),
		Interval: c.Duration(flagInterval),
		Count:    c.Int(flagCount),
	}
	if len(button.All(reg)) == 0 {
		logx.L().Named("buttond").Warnw("board defines no buttons", "board", c.String(flagBoard))
	}
	err := s.Run(ctx)
	console.Disconnect()
	<-done
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
