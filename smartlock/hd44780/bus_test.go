package hd44780

import (
	"errors"
	"testing"
	"time"
)

type fakePort struct {
	pins     PinAssignment
	dir      Direction
	lines    [3]bool
	sample   byte
	written  []byte
	claimErr error
	readsAt  []bool // enable level at each ReadData
	lineSets int
}

func (p *fakePort) Configure(pins PinAssignment) error {
	if p.claimErr != nil {
		return p.claimErr
	}
	p.pins = pins
	return nil
}
func (p *fakePort) SetDirection(dir Direction) { p.dir = dir }
func (p *fakePort) WriteData(v byte) { p.written = append(p.written, v) }
func (p *fakePort) SetLine(l Line, high bool) {
	p.lines[l] = high
	p.lineSets++
}
func (p *fakePort) ReadData() byte {
	p.readsAt = append(p.readsAt, p.lines[LineE])
	return p.sample
}

type nopClock struct{ now time.Time }

func (c *nopClock) Now() time.Time        { return c.now }
func (c *nopClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func newTestBus(t *testing.T) (*Bus, *fakePort) {
	t.Helper()
	port := &fakePort{}
	bus := NewBus(port, &nopClock{}, time.Microsecond)
	if err := bus.Configure(ContiguousPins(16, 17, 18, 6)); err != nil {
		t.Fatalf("Configure failed: %v", err)
	}
	return bus, port
}

func TestPinAssignmentValidate(t *testing.T) {
	gap := ContiguousPins(16, 17, 18, 6)
	gap.Data[4] = 20

	descending := PinAssignment{RS: 1, RW: 2, E: 3}
	for i := range descending.Data {
		descending.Data[i] = Pin(19 - i)
	}

	tests := []struct {
		name    string
		pins    PinAssignment
		wantErr bool
	}{
		{"contiguous", ContiguousPins(16, 17, 18, 6), false},
		{"original wiring", ContiguousPins(21, 22, 25, 12), false},
		{"gap in data field", gap, true},
		{"descending data field", descending, true},
		{"control overlaps data", ContiguousPins(8, 17, 18, 6), true},
		{"duplicate control", ContiguousPins(16, 16, 18, 6), true},
		{"data past bit 31", ContiguousPins(0, 1, 2, 25), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.pins.Validate()
			if tt.wantErr {
				if !errors.Is(err, ErrPinClaim) {
					t.Errorf("Validate() = %v, want ErrPinClaim", err)
				}
				return
			}
			if err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestPinAssignmentMask(t *testing.T) {
	pins := ContiguousPins(21, 22, 25, 12)
	if got := pins.DataMask(); got != 0x000FF000 {
		t.Errorf("DataMask() = 0x%08x, want 0x000ff000", got)
	}
	if got := pins.DataShift(); got != 12 {
		t.Errorf("DataShift() = %d, want 12", got)
	}
}

func TestConfigureLeavesBusIdle(t *testing.T) {
	bus, port := newTestBus(t)

	if port.dir != Input || bus.Direction() != Input {
		t.Errorf("direction: expected input, got port=%v bus=%v", port.dir, bus.Direction())
	}
	if port.lines[LineRS] {
		t.Error("RS should be low")
	}
	if !port.lines[LineRW] {
		t.Error("RW should be high (read)")
	}
	if port.lines[LineE] || bus.Enabled() {
		t.Error("E should be low")
	}
}

func TestConfigureClaimFailure(t *testing.T) {
	port := &fakePort{claimErr: errors.New("pin in use")}
	bus := NewBus(port, &nopClock{}, 0)

	err := bus.Configure(ContiguousPins(16, 17, 18, 6))
	if !errors.Is(err, ErrPinClaim) {
		t.Fatalf("Configure() = %v, want ErrPinClaim", err)
	}
	if bus.Configured() {
		t.Error("bus should not be configured")
	}
}

func TestBusBeforeConfigure(t *testing.T) {
	port := &fakePort{}
	bus := NewBus(port, &nopClock{}, 0)

	if err := bus.SetRegisterSelect(true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SetRegisterSelect() = %v, want ErrNotConfigured", err)
	}
	if err := bus.SetReadWrite(true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SetReadWrite() = %v, want ErrNotConfigured", err)
	}
	if err := bus.SetEnable(true); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SetEnable() = %v, want ErrNotConfigured", err)
	}
	if port.lineSets != 0 {
		t.Errorf("control lines driven before Configure: %d", port.lineSets)
	}
	if bus.Enabled() {
		t.Error("enable recorded high before Configure")
	}

	if err := bus.SetDirection(Output); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("SetDirection() = %v, want ErrNotConfigured", err)
	}
	if err := bus.WriteByte(0x41); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("WriteByte() = %v, want ErrNotConfigured", err)
	}
	if _, err := bus.ReadByte(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("ReadByte() = %v, want ErrNotConfigured", err)
	}
	if _, err := bus.PollBusy(); !errors.Is(err, ErrNotConfigured) {
		t.Errorf("PollBusy() = %v, want ErrNotConfigured", err)
	}
}

func TestSetDirectionRefusedWithEnableHigh(t *testing.T) {
	bus, port := newTestBus(t)

	if err := bus.SetEnable(true); err != nil {
		t.Fatalf("SetEnable() failed: %v", err)
	}
	if err := bus.SetDirection(Output); !errors.Is(err, ErrEnableHigh) {
		t.Fatalf("SetDirection() = %v, want ErrEnableHigh", err)
	}
	if port.dir != Input {
		t.Errorf("port direction changed to %v", port.dir)
	}

	if err := bus.SetEnable(false); err != nil {
		t.Fatalf("SetEnable() failed: %v", err)
	}
	if err := bus.SetDirection(Output); err != nil {
		t.Fatalf("SetDirection() failed: %v", err)
	}
	if port.dir != Output {
		t.Errorf("direction: expected output, got %v", port.dir)
	}
}

func TestWriteAndReadRequireDirection(t *testing.T) {
	bus, port := newTestBus(t)

	if err := bus.WriteByte(0x41); !errors.Is(err, ErrBusDirection) {
		t.Errorf("WriteByte() on input bus = %v, want ErrBusDirection", err)
	}
	if len(port.written) != 0 {
		t.Errorf("bytes written to released bus: %v", port.written)
	}

	port.sample = 0x5A
	v, err := bus.ReadByte()
	if err != nil {
		t.Fatalf("ReadByte() failed: %v", err)
	}
	if v != 0x5A {
		t.Errorf("ReadByte() = 0x%02x, want 0x5a", v)
	}

	if err := bus.SetDirection(Output); err != nil {
		t.Fatalf("SetDirection() failed: %v", err)
	}
	if err := bus.WriteByte(0x41); err != nil {
		t.Errorf("WriteByte() failed: %v", err)
	}
	if _, err := bus.ReadByte(); !errors.Is(err, ErrBusDirection) {
		t.Errorf("ReadByte() on output bus = %v, want ErrBusDirection", err)
	}
	if _, err := bus.PollBusy(); !errors.Is(err, ErrBusDirection) {
		t.Errorf("PollBusy() on output bus = %v, want ErrBusDirection", err)
	}
}

func TestIsBusy(t *testing.T) {
	for v := 0; v < 256; v++ {
		if got, want := IsBusy(byte(v)), v >= 128; got != want {
			t.Errorf("IsBusy(%d) = %v, want %v", v, got, want)
		}
	}
}

func TestPollBusyDependsOnlyOnSample(t *testing.T) {
	bus, port := newTestBus(t)

	for v := 0; v < 256; v++ {
		// Scramble the control lines; PollBusy must set its own.
		port.lines[LineRS] = v%2 == 0
		port.lines[LineRW] = v%3 == 0
		port.sample = byte(v)

		busy, err := bus.PollBusy()
		if err != nil {
			t.Fatalf("PollBusy() failed: %v", err)
		}
		if want := v >= 128; busy != want {
			t.Errorf("PollBusy() with sample %d = %v, want %v", v, busy, want)
		}
		if port.lines[LineRS] || !port.lines[LineRW] {
			t.Errorf("PollBusy() left RS=%v RW=%v, want RS=false RW=true", port.lines[LineRS], port.lines[LineRW])
		}
		if port.lines[LineE] || bus.Enabled() {
			t.Fatal("PollBusy() left enable high")
		}
	}

	for i, e := range port.readsAt {
		if !e {
			t.Fatalf("status read %d sampled with enable low", i)
		}
	}
}

func TestDirectionString(t *testing.T) {
	tests := []struct {
		dir  Direction
		want string
	}{
		{Input, "input"},
		{Output, "output"},
		{Direction(9), "unknown"},
	}
	for _, tt := range tests {
		if got := tt.dir.String(); got != tt.want {
			t.Errorf("Direction(%d).String() = %q, want %q", tt.dir, got, tt.want)
		}
	}
}
