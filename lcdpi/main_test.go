//go:build linux

package main

import (
	"errors"
	"testing"

	"github.com/harveysanders/picolock/smartlock/hd44780"
)

func TestFlagByte(t *testing.T) {
	tests := []struct {
		name    string
		v       uint
		want    uint8
		wantErr bool
	}{
		{name: "zero", v: 0, want: 0},
		{name: "max", v: 255, want: 255},
		{name: "wraps to zero", v: 256, wantErr: true},
		{name: "wraps to four", v: 260, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := flagByte("row", tt.v)
			if tt.wantErr {
				if !errors.Is(err, hd44780.ErrInvalidInput) {
					t.Fatalf("flagByte(%d): expected ErrInvalidInput, got %v", tt.v, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("flagByte failed: %v", err)
			}
			if got != tt.want {
				t.Errorf("flagByte(%d): expected %d, got %d", tt.v, tt.want, got)
			}
		})
	}
}

func TestPinsFromFlags(t *testing.T) {
	pins, err := pinsFromFlags(21, 22, 25, 12)
	if err != nil {
		t.Fatalf("pinsFromFlags failed: %v", err)
	}
	want := hd44780.ContiguousPins(21, 22, 25, 12)
	if pins != want {
		t.Errorf("pinsFromFlags: expected %+v, got %+v", want, pins)
	}

	for _, bad := range [][4]uint{
		{256, 22, 25, 12},
		{21, 278, 25, 12},
		{21, 22, 25, 250},
	} {
		if _, err := pinsFromFlags(bad[0], bad[1], bad[2], bad[3]); !errors.Is(err, hd44780.ErrInvalidInput) {
			t.Errorf("pinsFromFlags(%v): expected ErrInvalidInput, got %v", bad, err)
		}
	}
}
