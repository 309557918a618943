// Command buttond boots the devices described by a board file and polls
// every ready button, printing state changes.
package main

import (
	"os"

	"devicecore-go/device"
	"devicecore-go/x/logx"

	_ "devicecore-go/drivers/gpio/fakeport"
	_ "devicecore-go/drivers/gpio/pcf8574"
	_ "devicecore-go/drivers/gpio/periphio"
	_ "devicecore-go/drivers/i2c/periphbus"
)

func main() {
	if err := newApp(device.Default, os.Stdout).Run(os.Args); err != nil {
		logx.L().Errorw("buttond failed", "err", err)
		os.Exit(1)
	}
}
