package i2cmux

import (
	"errors"
	"fmt"

	"periph.io/x/conn/v3/i2c"
)

const (
	DefaultAddress = 0x70
	NumChannels    = 8
)

var ErrInvalidChannel = errors.New("i2cmux: channel out of range")

// Mux is a TCA9548A 1-to-8 I2C switch. Devices with identical addresses sit
// on different downstream channels; only the selected channel is connected
// to the upstream bus.
//
// Select is not locked against other users of the bus: callers must select
// and then talk to the downstream device without interleaving other
// downstream transactions.
type Mux struct {
	dev *i2c.Dev
}

func New(bus i2c.Bus, addr uint16) *Mux {
	if addr == 0 {
		addr = DefaultAddress
	}
	return &Mux{dev: &i2c.Dev{Addr: addr, Bus: bus}}
}

// Select connects downstream channel ch (0-7) and disconnects the others.
func (m *Mux) Select(ch uint8) error {
	if ch >= NumChannels {
		return fmt.Errorf("%w: %d", ErrInvalidChannel, ch)
	}
	if err := m.dev.Tx([]byte{1 << ch}, nil); err != nil {
		return fmt.Errorf("i2cmux: select %d: %w", ch, err)
	}
	return nil
}

func (m *Mux) String() string {
	return fmt.Sprintf("TCA9548A@%#x", m.dev.Addr)
}
