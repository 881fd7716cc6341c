package hd44780

import "strconv"

// Instruction is a command byte for the HD44780 instruction register.
type Instruction byte

// Opcode prefixes. The highest set bit identifies the instruction.
const (
	cmdClearDisplay   byte = 0x01 // 00000001
	cmdReturnHome     byte = 0x02 // 00000010
	cmdEntryMode      byte = 0x04 // 00000100
	cmdDisplayControl byte = 0x08 // 00001000
	cmdCursorShift    byte = 0x10 // 00010000
	cmdFunctionSet    byte = 0x20 // 00100000
	cmdSetCGRAMAddr   byte = 0x40 // 01000000
	cmdSetDDRAMAddr   byte = 0x80 // 10000000
)

// Feature bits.
const (
	entryIncrement byte = 0x02
	entryShift     byte = 0x01

	displayOn byte = 0x04
	cursorOn  byte = 0x02
	blinkOn   byte = 0x01

	shiftDisplay byte = 0x08
	shiftRight   byte = 0x04

	function8Bit  byte = 0x10
	function2Line byte = 0x08
	function5x10  byte = 0x04
)

const (
	// Clear blanks DDRAM, sets the address to 0 and selects increment mode.
	Clear Instruction = Instruction(cmdClearDisplay)
	// Home sets the address to 0 and unshifts the display, keeping DDRAM.
	Home Instruction = Instruction(cmdReturnHome)
)

// EntryMode selects the address step after each RAM access and whether
// writes also shift the display.
func EntryMode(increment, shift bool) Instruction {
	v := cmdEntryMode
	if increment {
		v |= entryIncrement
	}
	if shift {
		v |= entryShift
	}
	return Instruction(v)
}

// DisplayOnOff switches the display, the underline cursor and the blinking block.
func DisplayOnOff(display, cursor, blink bool) Instruction {
	v := cmdDisplayControl
	if display {
		v |= displayOn
	}
	if cursor {
		v |= cursorOn
	}
	if blink {
		v |= blinkOn
	}
	return Instruction(v)
}

// CursorShift moves the cursor, or the whole display when display is true,
// one position without touching DDRAM.
func CursorShift(display, right bool) Instruction {
	v := cmdCursorShift
	if display {
		v |= shiftDisplay
	}
	if right {
		v |= shiftRight
	}
	return Instruction(v)
}

// FunctionMode selects bus width, line count and font.
func FunctionMode(eightBit, twoLines, tallFont bool) Instruction {
	v := cmdFunctionSet
	if eightBit {
		v |= function8Bit
	}
	if twoLines {
		v |= function2Line
	}
	if tallFont {
		v |= function5x10
	}
	return Instruction(v)
}

// DDRAMAddress sets the display data address. The MSB marks it as DDRAM.
func DDRAMAddress(addr uint8) Instruction {
	return Instruction(cmdSetDDRAMAddr | addr&0x7F)
}

// CGRAMAddress sets the character generator address.
func CGRAMAddress(addr uint8) Instruction {
	return Instruction(cmdSetCGRAMAddr | addr&0x3F)
}

// Name returns the instruction family.
func (i Instruction) Name() string {
	switch {
	case byte(i)&cmdSetDDRAMAddr != 0:
		return "set-ddram-address"
	case byte(i)&cmdSetCGRAMAddr != 0:
		return "set-cgram-address"
	case byte(i)&cmdFunctionSet != 0:
		return "function-set"
	case byte(i)&cmdCursorShift != 0:
		return "cursor-or-display-shift"
	case byte(i)&cmdDisplayControl != 0:
		return "display-control"
	case byte(i)&cmdEntryMode != 0:
		return "entry-mode-set"
	case byte(i)&cmdReturnHome != 0:
		return "return-home"
	case byte(i)&cmdClearDisplay != 0:
		return "clear-display"
	default:
		return "nop"
	}
}

func (i Instruction) String() string {
	b := make([]byte, 0, 32)
	b = append(b, i.Name()...)
	b = append(b, "(0x"...)
	if i < 0x10 {
		b = append(b, '0')
	}
	b = strconv.AppendUint(b, uint64(i), 16)
	b = append(b, ')')
	return string(b)
}
