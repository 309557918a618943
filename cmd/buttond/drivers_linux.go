//go:build linux

package main

import _ "devicecore-go/drivers/gpio/chardev"
