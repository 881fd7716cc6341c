package periphport

import (
	"errors"
	"fmt"
	"testing"

	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/gpio/gpiotest"

	"github.com/harveysanders/picolock/smartlock/hd44780"
)

func testPins() map[string]*gpiotest.Pin {
	pins := map[string]*gpiotest.Pin{}
	for n := 0; n < 28; n++ {
		name := fmt.Sprintf("GPIO%d", n)
		pins[name] = &gpiotest.Pin{N: name, Num: n}
	}
	return pins
}

func newTestPort(t *testing.T) (*Port, map[string]*gpiotest.Pin) {
	t.Helper()
	pins := testPins()
	port := NewWithLookup(func(name string) gpio.PinIO {
		p, ok := pins[name]
		if !ok {
			return nil
		}
		return p
	})
	if err := port.Configure(hd44780.ContiguousPins(16, 17, 18, 6)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return port, pins
}

func TestConfigureMissingPin(t *testing.T) {
	port := NewWithLookup(func(string) gpio.PinIO { return nil })
	err := port.Configure(hd44780.ContiguousPins(16, 17, 18, 6))
	if !errors.Is(err, hd44780.ErrPinClaim) {
		t.Fatalf("Configure() = %v, want ErrPinClaim", err)
	}
}

func TestWriteData(t *testing.T) {
	port, pins := newTestPort(t)
	port.SetDirection(hd44780.Output)
	port.WriteData(0xA5)

	for i := 0; i < 8; i++ {
		want := gpio.Level(0xA5&(1<<i) != 0)
		if got := pins[fmt.Sprintf("GPIO%d", 6+i)].Read(); got != want {
			t.Errorf("D%d: expected %v, got %v", i, want, got)
		}
	}
	if err := port.Err(); err != nil {
		t.Errorf("Err() = %v", err)
	}
}

func TestReadData(t *testing.T) {
	port, pins := newTestPort(t)
	for i := 0; i < 8; i++ {
		pins[fmt.Sprintf("GPIO%d", 6+i)].L = gpio.Level(0x3C&(1<<i) != 0)
	}
	if got := port.ReadData(); got != 0x3C {
		t.Errorf("ReadData() = 0x%02x, want 0x3c", got)
	}
}

func TestSetLine(t *testing.T) {
	port, pins := newTestPort(t)

	tests := []struct {
		line hd44780.Line
		pin  string
	}{
		{hd44780.LineRS, "GPIO16"},
		{hd44780.LineRW, "GPIO17"},
		{hd44780.LineE, "GPIO18"},
	}
	for _, tt := range tests {
		t.Run(tt.line.String(), func(t *testing.T) {
			port.SetLine(tt.line, true)
			if pins[tt.pin].Read() != gpio.High {
				t.Errorf("%s should be high", tt.pin)
			}
			port.SetLine(tt.line, false)
			if pins[tt.pin].Read() != gpio.Low {
				t.Errorf("%s should be low", tt.pin)
			}
		})
	}
}
