package openrgb

import (
	"bytes"
	"encoding/binary"
	"io"

	"github.com/pkg/errors"
)

// Packet IDs of the OpenRGB SDK protocol used by this client.
const (
	RequestControllerCount uint32 = 0
	RequestControllerData  uint32 = 1
	SetClientName          uint32 = 50
	DeviceListUpdated      uint32 = 100
	UpdateLEDs             uint32 = 1050
	SetCustomMode          uint32 = 1100
)

const headerSize = 16

var magic = [4]byte{'O', 'R', 'G', 'B'}

var order = binary.LittleEndian

type Header struct {
	Device uint32
	ID     uint32
	Size   uint32
}

func (h Header) MarshalBinary() ([]byte, error) {
	buf := make([]byte, headerSize)
	copy(buf, magic[:])
	order.PutUint32(buf[4:], h.Device)
	order.PutUint32(buf[8:], h.ID)
	order.PutUint32(buf[12:], h.Size)
	return buf, nil
}

func ReadHeader(r io.Reader) (Header, error) {
	buf := make([]byte, headerSize)
	if _, err := io.ReadFull(r, buf); err != nil {
		return Header{}, err
	}
	if !bytes.Equal(buf[:4], magic[:]) {
		return Header{}, errors.Errorf("bad packet magic %q", buf[:4])
	}
	return Header{
		Device: order.Uint32(buf[4:]),
		ID:     order.Uint32(buf[8:]),
		Size:   order.Uint32(buf[12:]),
	}, nil
}

// RGB is one LED colour on the wire: red, green, blue and a padding byte.
type RGB struct {
	R, G, B uint8
}

type Mode struct {
	Name      string
	Value     int32
	Flags     uint32
	SpeedMin  uint32
	SpeedMax  uint32
	ColorsMin uint32
	ColorsMax uint32
	Speed     uint32
	Direction uint32
	ColorMode uint32
	Colors    []RGB
}

type Zone struct {
	Name      string
	Type      int32
	LEDsMin   uint32
	LEDsMax   uint32
	LEDsCount uint32
	Matrix    []byte
}

type LED struct {
	Name  string
	Value uint32
}

// Controller is the protocol version 0 description of one device.
type Controller struct {
	Type        int32
	Name        string
	Description string
	Version     string
	Serial      string
	Location    string
	ActiveMode  int32
	Modes       []Mode
	Zones       []Zone
	LEDs        []LED
	Colors      []RGB
}

type decoder struct {
	buf []byte
	err error
}

func (d *decoder) take(n int) []byte {
	if d.err != nil {
		return nil
	}
	if n < 0 || n > len(d.buf) {
		d.err = errors.Errorf("controller data truncated: need %d bytes, have %d", n, len(d.buf))
		return nil
	}
	b := d.buf[:n]
	d.buf = d.buf[n:]
	return b
}

func (d *decoder) u16() uint16 {
	if b := d.take(2); b != nil {
		return order.Uint16(b)
	}
	return 0
}

func (d *decoder) u32() uint32 {
	if b := d.take(4); b != nil {
		return order.Uint32(b)
	}
	return 0
}

func (d *decoder) i32() int32 {
	return int32(d.u32())
}

// str reads a length-prefixed string whose length counts the trailing NUL.
func (d *decoder) str() string {
	b := d.take(int(d.u16()))
	return string(bytes.TrimRight(b, "\x00"))
}

func (d *decoder) colors() []RGB {
	n := int(d.u16())
	if n == 0 {
		return nil
	}
	colors := make([]RGB, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		if b := d.take(4); b != nil {
			colors = append(colors, RGB{R: b[0], G: b[1], B: b[2]})
		}
	}
	return colors
}

func DecodeController(data []byte) (Controller, error) {
	d := &decoder{buf: data}
	size := d.u32()
	if d.err == nil && int(size) != len(data) {
		return Controller{}, errors.Errorf("controller data size %d does not match payload size %d", size, len(data))
	}

	var c Controller
	c.Type = d.i32()
	c.Name = d.str()
	c.Description = d.str()
	c.Version = d.str()
	c.Serial = d.str()
	c.Location = d.str()

	modes := int(d.u16())
	c.ActiveMode = d.i32()
	for i := 0; i < modes && d.err == nil; i++ {
		c.Modes = append(c.Modes, Mode{
			Name:      d.str(),
			Value:     d.i32(),
			Flags:     d.u32(),
			SpeedMin:  d.u32(),
			SpeedMax:  d.u32(),
			ColorsMin: d.u32(),
			ColorsMax: d.u32(),
			Speed:     d.u32(),
			Direction: d.u32(),
			ColorMode: d.u32(),
			Colors:    d.colors(),
		})
	}

	zones := int(d.u16())
	for i := 0; i < zones && d.err == nil; i++ {
		z := Zone{
			Name:      d.str(),
			Type:      d.i32(),
			LEDsMin:   d.u32(),
			LEDsMax:   d.u32(),
			LEDsCount: d.u32(),
		}
		if n := int(d.u16()); n > 0 {
			z.Matrix = append([]byte(nil), d.take(n)...)
		}
		c.Zones = append(c.Zones, z)
	}

	leds := int(d.u16())
	for i := 0; i < leds && d.err == nil; i++ {
		c.LEDs = append(c.LEDs, LED{Name: d.str(), Value: d.u32()})
	}

	c.Colors = d.colors()
	if d.err != nil {
		return Controller{}, d.err
	}
	return c, nil
}

type encoder struct {
	bytes.Buffer
}

func (e *encoder) u16(v uint16) {
	_ = binary.Write(&e.Buffer, order, v)
}

func (e *encoder) u32(v uint32) {
	_ = binary.Write(&e.Buffer, order, v)
}

func (e *encoder) str(s string) {
	e.u16(uint16(len(s) + 1))
	e.WriteString(s)
	e.WriteByte(0)
}

func (e *encoder) colors(colors []RGB) {
	e.u16(uint16(len(colors)))
	for _, c := range colors {
		e.Write([]byte{c.R, c.G, c.B, 0})
	}
}

// EncodeController is the inverse of DecodeController.
func EncodeController(c Controller) []byte {
	var e encoder
	e.u32(0)
	e.u32(uint32(c.Type))
	e.str(c.Name)
	e.str(c.Description)
	e.str(c.Version)
	e.str(c.Serial)
	e.str(c.Location)

	e.u16(uint16(len(c.Modes)))
	e.u32(uint32(c.ActiveMode))
	for _, m := range c.Modes {
		e.str(m.Name)
		for _, v := range []uint32{uint32(m.Value), m.Flags, m.SpeedMin, m.SpeedMax, m.ColorsMin, m.ColorsMax, m.Speed, m.Direction, m.ColorMode} {
			e.u32(v)
		}
		e.colors(m.Colors)
	}

	e.u16(uint16(len(c.Zones)))
	for _, z := range c.Zones {
		e.str(z.Name)
		e.u32(uint32(z.Type))
		e.u32(z.LEDsMin)
		e.u32(z.LEDsMax)
		e.u32(z.LEDsCount)
		e.u16(uint16(len(z.Matrix)))
		e.Write(z.Matrix)
	}

	e.u16(uint16(len(c.LEDs)))
	for _, l := range c.LEDs {
		e.str(l.Name)
		e.u32(l.Value)
	}
	e.colors(c.Colors)

	data := e.Bytes()
	order.PutUint32(data, uint32(len(data)))
	return data
}

// EncodeUpdateLEDs builds the payload that sets every LED of a device.
func EncodeUpdateLEDs(colors []RGB) []byte {
	var e encoder
	e.u32(uint32(4 + 2 + 4*len(colors)))
	e.colors(colors)
	return e.Bytes()
}

func DecodeUpdateLEDs(data []byte) ([]RGB, error) {
	d := &decoder{buf: data}
	size := d.u32()
	colors := d.colors()
	if d.err != nil {
		return nil, d.err
	}
	if int(size) != len(data) {
		return nil, errors.Errorf("update size %d does not match payload size %d", size, len(data))
	}
	return colors, nil
}
