package device

import (
	"context"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"i4.energy/across/loranode/at"
)

// console carries out normal-mode frames. Commands that change node state
// are handled here; everything else is relayed to the radio module and its
// answer written back to the console.
type console struct {
	d *Device
}

func (c console) Run(ctx context.Context, command string) {
	d := c.d
	switch {
	case strings.HasPrefix(command, at.CmdUartMode):
		c.setUARTMode(strings.TrimPrefix(command, at.CmdUartMode))

	case command == at.CmdJoin:
		if err := d.rejoin(ctx); err != nil {
			d.printf("%s: %v\r\n", at.ERROR, err)
			return
		}
		d.printf("%s\r\n", at.OK)

	default:
		resp, err := d.radio.Exec(ctx, command)
		if resp != "" {
			d.printf("%s\r\n", strings.ReplaceAll(resp, "\n", at.CRLF))
			return
		}
		if err != nil {
			d.logger.Warn("Command relay failed", "command", command, "error", err)
			d.printf("%s: %v\r\n", at.ERROR, err)
		}
	}
}

// setUARTMode handles "<index>:<0|1>".
func (c console) setUARTMode(args string) {
	d := c.d
	idx, val, ok := strings.Cut(args, ":")
	index, err := strconv.Atoi(idx)
	if !ok || err != nil || (val != "0" && val != "1") {
		d.printf("%s: invalid uart_mode arguments %q\r\n", at.ERROR, args)
		return
	}
	if want := d.store.Get().UART.Index; index != want {
		d.printf("%s: uart %d is not the console uart %d\r\n", at.ERROR, index, want)
		return
	}

	mode := at.ModeNormal
	if val == "1" {
		mode = at.ModeTransparent
	}
	if err := d.setMode(mode); err != nil {
		d.printf("%s: %v\r\n", at.ERROR, err)
		return
	}
	d.printf("%s\r\n", at.OK)
}

// Handle receives normal-mode frames that are not AT commands.
func (c console) Handle(_ context.Context, frame []byte) {
	c.d.logger.Info("Unrecognized frame", "length", len(frame), "data", hex.EncodeToString(frame))
}

func (d *Device) printf(format string, args ...any) {
	if _, err := fmt.Fprintf(d.console, format, args...); err != nil {
		d.logger.Warn("Console write failed", "error", err)
	}
}
