// Package openrgb talks to an OpenRGB SDK server over TCP.
package openrgb

import (
	"context"
	"io"
	"net"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/scheerer/hunter-screen-colors/internal/logging"
)

var logger = logging.New("openrgb")

const DefaultAddress = "localhost:6742"

// Client speaks protocol version 0, which every SDK server understands. Requests are
// serialised; a Client is safe for concurrent use.
type Client struct {
	mu   sync.Mutex
	conn net.Conn
}

// Dial connects to address and announces name to the server when it is not empty.
func Dial(ctx context.Context, address, name string) (*Client, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, errors.Wrapf(err, "connecting to OpenRGB at %s", address)
	}

	c := NewClient(conn)
	if name != "" {
		if err := c.SetClientName(ctx, name); err != nil {
			_ = c.Close()
			return nil, err
		}
	}
	logger.With(zap.String("address", address)).Debug("Connected to OpenRGB")
	return c, nil
}

func NewClient(conn net.Conn) *Client {
	return &Client{conn: conn}
}

func (c *Client) Close() error {
	return c.conn.Close()
}

func (c *Client) SetClientName(ctx context.Context, name string) error {
	return c.send(ctx, 0, SetClientName, append([]byte(name), 0))
}

func (c *Client) ControllerCount(ctx context.Context) (int, error) {
	data, err := c.request(ctx, 0, RequestControllerCount, nil)
	if err != nil {
		return 0, err
	}
	if len(data) < 4 {
		return 0, errors.Errorf("controller count reply has %d bytes", len(data))
	}
	return int(order.Uint32(data)), nil
}

func (c *Client) Controller(ctx context.Context, index uint32) (Controller, error) {
	data, err := c.request(ctx, index, RequestControllerData, nil)
	if err != nil {
		return Controller{}, err
	}
	controller, err := DecodeController(data)
	if err != nil {
		return Controller{}, errors.Wrapf(err, "controller %d", index)
	}
	return controller, nil
}

// Controllers fetches every controller the server knows about, in index order.
func (c *Client) Controllers(ctx context.Context) ([]Controller, error) {
	n, err := c.ControllerCount(ctx)
	if err != nil {
		return nil, err
	}
	controllers := make([]Controller, 0, n)
	for i := 0; i < n; i++ {
		controller, err := c.Controller(ctx, uint32(i))
		if err != nil {
			return nil, err
		}
		controllers = append(controllers, controller)
	}
	return controllers, nil
}

func (c *Client) SetCustomMode(ctx context.Context, index uint32) error {
	return c.send(ctx, index, SetCustomMode, nil)
}

func (c *Client) UpdateLEDs(ctx context.Context, index uint32, colors []RGB) error {
	return c.send(ctx, index, UpdateLEDs, EncodeUpdateLEDs(colors))
}

func (c *Client) send(ctx context.Context, device, id uint32, payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.watch(ctx)
	defer stop()
	return c.write(device, id, payload)
}

// request writes a packet and waits for the reply with the same packet ID. Unrelated
// packets, such as device list notifications, are skipped.
func (c *Client) request(ctx context.Context, device, id uint32, payload []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	stop := c.watch(ctx)
	defer stop()
	if err := c.write(device, id, payload); err != nil {
		return nil, err
	}

	for {
		h, err := ReadHeader(c.conn)
		if err != nil {
			return nil, errors.Wrapf(err, "reading reply to packet %d", id)
		}
		data := make([]byte, h.Size)
		if _, err := io.ReadFull(c.conn, data); err != nil {
			return nil, errors.Wrapf(err, "reading %d byte payload of packet %d", h.Size, h.ID)
		}
		if h.ID == id {
			return data, nil
		}
		logger.With(zap.Uint32("packet", h.ID)).Debug("Skipping unsolicited packet")
	}
}

func (c *Client) write(device, id uint32, payload []byte) error {
	header, _ := Header{Device: device, ID: id, Size: uint32(len(payload))}.MarshalBinary()
	if _, err := c.conn.Write(append(header, payload...)); err != nil {
		return errors.Wrapf(err, "writing packet %d", id)
	}
	return nil
}

// watch applies the context's deadline to the connection and interrupts blocked I/O when
// the context is cancelled.
func (c *Client) watch(ctx context.Context) func() {
	deadline, _ := ctx.Deadline()
	_ = c.conn.SetDeadline(deadline)
	stop := context.AfterFunc(ctx, func() {
		_ = c.conn.SetDeadline(time.Unix(1, 0))
	})
	return func() {
		stop()
	}
}
