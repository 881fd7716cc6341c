// Package lcd provides a channel-based messaging system for the lock's
// two-line character display.
//
// The Handler is the only goroutine that touches the display; every other
// part of the firmware sends it Messages.
//
// Example usage:
//
//	lcdMessages := make(chan lcd.Message, 10)
//	handler := lcd.NewHandler(device, lcdMessages, logger)
//	go handler.Run()
//
//	// Send messages non-blocking
//	handler.Send(lcd.Message{
//	    Line1: []byte("locked"),
//	    Line2: []byte("wifi ok"),
//	})
package lcd

import (
	"context"
	"io"
	"log/slog"
)

// maxColumns is the longest line the handler buffers (one DDRAM line).
const maxColumns = 40

// Display is the part of a character LCD the handler drives.
// *hd44780.Device satisfies it, as does I2CDisplay.
type Display interface {
	ClearDisplay() error
	SetCursorLocation(row, column uint8) error
	Print(text []byte) error
	Size() (width, height uint8)
}

// Message represents a two-line LCD message. A nil line keeps what is
// shown on that row; an empty, non-nil line clears it.
type Message struct {
	Line1 []byte
	Line2 []byte
}

// Handler processes LCD messages from a channel.
type Handler struct {
	device   Display
	messages chan Message
	logger   *slog.Logger
	rows     int
	columns  int

	lines [2][maxColumns]byte
	lens  [2]int
}

// NewHandler creates a message handler sized to the display.
func NewHandler(device Display, messages chan Message, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{
			Level: slog.Level(127),
		}))
	}
	width, height := device.Size()
	h := &Handler{
		device:   device,
		messages: messages,
		logger:   logger,
		rows:     int(height),
		columns:  int(width),
	}
	if h.rows > 2 {
		h.rows = 2
	}
	if h.columns > maxColumns {
		h.columns = maxColumns
	}
	return h
}

// Run processes messages from the channel and updates the LCD until the
// channel is closed. Run should be called in a separate goroutine.
func (h *Handler) Run() {
	for msg := range h.messages {
		h.update(msg)
		h.display()
	}
}

// Send queues msg without blocking. It reports false when the queue is
// full and the message was dropped.
func (h *Handler) Send(msg Message) bool {
	select {
	case h.messages <- msg:
		return true
	default:
		h.logger.Warn("lcd:dropped")
		return false
	}
}

// Show queues msg, waiting for room or ctx.
func (h *Handler) Show(ctx context.Context, msg Message) error {
	select {
	case h.messages <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// update copies the message into the screen buffer so senders may reuse
// their slices.
func (h *Handler) update(msg Message) {
	for row, line := range [2][]byte{msg.Line1, msg.Line2} {
		if line == nil {
			continue
		}
		h.lens[row] = copy(h.lines[row][:h.columns], line)
	}
}

// display prints the buffered lines, each centered on its row.
func (h *Handler) display() {
	if err := h.device.ClearDisplay(); err != nil {
		h.logger.Error("lcd:clear", slog.String("err", err.Error()))
		return
	}
	for row := 0; row < h.rows; row++ {
		n := h.lens[row]
		if n == 0 {
			continue
		}
		col := Center(n, h.columns)
		if err := h.device.SetCursorLocation(uint8(row), uint8(col)); err != nil {
			h.logger.Error("lcd:cursor", slog.Int("row", row), slog.String("err", err.Error()))
			continue
		}
		if err := h.device.Print(h.lines[row][:n]); err != nil {
			h.logger.Error("lcd:print", slog.Int("row", row), slog.String("err", err.Error()))
		}
	}
}

// Center returns the column that centers n characters on a row of width
// columns, rounding left.
func Center(n, width int) int {
	if n >= width {
		return 0
	}
	return (width - n) / 2
}
