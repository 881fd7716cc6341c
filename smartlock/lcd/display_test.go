package lcd

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"testing"

	"github.com/harveysanders/picolock/smartlock/hd44780"
	"github.com/harveysanders/picolock/smartlock/hd44780/hd44780test"
)

type fakeDisplay struct {
	calls     []string
	cursorErr error
}

func (d *fakeDisplay) ClearDisplay() error {
	d.calls = append(d.calls, "clear")
	return nil
}

func (d *fakeDisplay) SetCursorLocation(row, column uint8) error {
	d.calls = append(d.calls, fmt.Sprintf("cursor %d %d", row, column))
	return d.cursorErr
}

func (d *fakeDisplay) Print(text []byte) error {
	d.calls = append(d.calls, "print "+string(text))
	return nil
}

func (d *fakeDisplay) Size() (uint8, uint8) { return 16, 2 }

// runAll feeds msgs through a handler and returns the display calls.
func runAll(t *testing.T, dev *fakeDisplay, msgs ...Message) []string {
	t.Helper()
	ch := make(chan Message, len(msgs))
	h := NewHandler(dev, ch, nil)
	for _, m := range msgs {
		if !h.Send(m) {
			t.Fatalf("Send(%q) dropped", m.Line1)
		}
	}
	close(ch)
	h.Run()
	return dev.calls
}

func TestHandlerDisplay(t *testing.T) {
	tests := []struct {
		name string
		msgs []Message
		want []string
	}{
		{
			name: "locked",
			msgs: []Message{{Line1: []byte("locked")}},
			want: []string{"clear", "cursor 0 5", "print locked"},
		},
		{
			name: "unlocked",
			msgs: []Message{{Line1: []byte("unlocked")}},
			want: []string{"clear", "cursor 0 4", "print unlocked"},
		},
		{
			name: "nil line keeps content",
			msgs: []Message{
				{Line1: []byte("locked")},
				{Line2: []byte("wifi ok")},
			},
			want: []string{
				"clear", "cursor 0 5", "print locked",
				"clear", "cursor 0 5", "print locked", "cursor 1 4", "print wifi ok",
			},
		},
		{
			name: "empty line clears",
			msgs: []Message{
				{Line1: []byte("locked"), Line2: []byte("mqtt")},
				{Line1: []byte{}},
			},
			want: []string{
				"clear", "cursor 0 5", "print locked", "cursor 1 6", "print mqtt",
				"clear", "cursor 1 6", "print mqtt",
			},
		},
		{
			name: "truncates to width",
			msgs: []Message{{Line1: []byte("0123456789abcdefghij")}},
			want: []string{"clear", "cursor 0 0", "print 0123456789abcdef"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := runAll(t, &fakeDisplay{}, tt.msgs...)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("calls:\n got %q\nwant %q", got, tt.want)
			}
		})
	}
}

func TestHandlerCopiesLines(t *testing.T) {
	buf := []byte("locked")
	ch := make(chan Message, 1)
	dev := &fakeDisplay{}
	h := NewHandler(dev, ch, nil)

	h.Send(Message{Line1: buf})
	close(ch)
	h.Run()

	copy(buf, "XXXXXX")
	dev.calls = nil
	h.display()
	if want := []string{"clear", "cursor 0 5", "print locked"}; !reflect.DeepEqual(dev.calls, want) {
		t.Errorf("calls: got %q, want %q", dev.calls, want)
	}
}

func TestHandlerCursorError(t *testing.T) {
	dev := &fakeDisplay{cursorErr: errors.New("bad cursor")}
	got := runAll(t, dev, Message{Line1: []byte("locked")})
	if want := []string{"clear", "cursor 0 5"}; !reflect.DeepEqual(got, want) {
		t.Errorf("calls: got %q, want %q", got, want)
	}
}

func TestSendDropsWhenFull(t *testing.T) {
	ch := make(chan Message, 1)
	h := NewHandler(&fakeDisplay{}, ch, nil)

	if !h.Send(Message{Line1: []byte("a")}) {
		t.Fatal("first Send should succeed")
	}
	if h.Send(Message{Line1: []byte("b")}) {
		t.Error("second Send should be dropped")
	}
}

func TestShowHonoursContext(t *testing.T) {
	h := NewHandler(&fakeDisplay{}, make(chan Message), nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := h.Show(ctx, Message{Line1: []byte("a")}); !errors.Is(err, context.Canceled) {
		t.Errorf("Show() = %v, want context.Canceled", err)
	}
}

func TestCenter(t *testing.T) {
	tests := []struct {
		n, width, want int
	}{
		{6, 16, 5},
		{8, 16, 4},
		{7, 16, 4},
		{16, 16, 0},
		{20, 16, 0},
		{1, 20, 9},
	}
	for _, tt := range tests {
		if got := Center(tt.n, tt.width); got != tt.want {
			t.Errorf("Center(%d, %d) = %d, want %d", tt.n, tt.width, got, tt.want)
		}
	}
}

func TestHandlerOnParallelDisplay(t *testing.T) {
	ctrl := hd44780test.NewController()
	dev := hd44780.New(ctrl)
	err := dev.Configure(hd44780.Config{
		Pins:  hd44780.ContiguousPins(16, 17, 18, 6),
		Clock: hd44780test.NewClock(),
	})
	if err != nil {
		t.Fatalf("Configure failed: %v", err)
	}

	ch := make(chan Message, 2)
	h := NewHandler(dev, ch, nil)
	h.Send(Message{Line1: []byte("unlocked"), Line2: []byte("button")})
	h.Send(Message{Line1: []byte("locked")})
	close(ch)
	h.Run()

	if got, want := ctrl.Text(0, 16), "     locked     "; got != want {
		t.Errorf("row 0: expected %q, got %q", want, got)
	}
	if got, want := strings.TrimSpace(ctrl.Text(1, 16)), "button"; got != want {
		t.Errorf("row 1: expected %q, got %q", want, got)
	}
	for _, v := range ctrl.Violations() {
		t.Errorf("protocol violation: %s", v)
	}
}
