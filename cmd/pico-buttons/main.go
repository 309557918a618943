//go:build rp2040

// Command pico-buttons is the MCU build: a static device table on the
// RP2040 with logs on UART0 and an optional PCF8574 expander on I2C0.
package main

import (
	"context"
	"machine"
	"time"

	uartx "github.com/jangala-dev/tinygo-uartx/uartx"

	"devicecore-go/bus"
	"devicecore-go/device"
	"devicecore-go/drivers/button"
	"devicecore-go/drivers/gpio"
	"devicecore-go/drivers/gpio/pcf8574"
	"devicecore-go/drivers/gpio/rp2"
	"devicecore-go/drivers/i2c"
	"devicecore-go/services/poller"
	"devicecore-go/x/logx"
)

// Static table: one on-board button and two on the expander.
var buttons = []struct {
	name  string
	port  string
	pin   int
	flags gpio.Flags
}{
	{"button0", "gpio0", 15, gpio.PullUp | gpio.ActiveLow},
	{"button1", "exp0", 0, gpio.ActiveLow},
	{"button2", "exp0", 1, gpio.ActiveLow},
}

func main() {
	// Allow USB CDC to enumerate before we print.
	time.Sleep(2 * time.Second)

	_ = uartx.UART0.Configure(uartx.UARTConfig{
		BaudRate: 115200,
		TX:       machine.UART0_TX_PIN,
		RX:       machine.UART0_RX_PIN,
	})
	logx.SetOutput(uartx.UART0, logx.InfoLevel)
	log := logx.L().Named("main")
	log.Infow("boot")

	_ = machine.I2C0.Configure(machine.I2CConfig{SDA: machine.GP4, SCL: machine.GP5, Frequency: 100_000})
	i2c.Buses.Add("i2c0", machine.I2C0)

	r := device.Default
	ports := map[string]device.Device{}
	if d, err := rp2.Define(r, "gpio0"); err == nil {
		ports["gpio0"] = d
	}
	if bus0, err := i2c.Resolve(i2c.Buses, "i2c0"); err == nil {
		if d, err := pcf8574.Define(r, "exp0", bus0, pcf8574.DefaultAddr, pcf8574.DefaultPriority); err == nil {
			ports["exp0"] = d
		}
	}
	for i, b := range buttons {
		spec := gpio.Spec{Port: ports[b.port], Pin: b.pin, Flags: b.flags}
		if _, err := button.Define(r, b.name, spec, uint32(i), button.DefaultPriority); err != nil {
			log.Errorw("define failed", "device", b.name, "err", err)
		}
	}

	ctx := context.Background()
	if err := device.InitAll(ctx); err != nil {
		log.Warnw("some devices failed to initialize", "err", err)
	}

	s := &poller.Service{Registry: r, Conn: bus.NewBus(4).NewConnection("poller")}
	_ = s.Run(ctx)
}
