// Package security implements the Full-flavor external security
// interlock peer: a boolean "safe to initialize" signal read over a
// serial link, reconnecting automatically if the link drops.
package security

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tarm/serial"
)

// serialPort is the subset of *serial.Port the watch loop needs, split
// out so tests can substitute a fake reader/closer instead of a real
// link.
type serialPort interface {
	io.Reader
	io.Closer
}

// Client polls an external interlock box over a serial link and caches
// the most recently reported key/value pairs.
type Client struct {
	mu     sync.Mutex
	port   string
	s      serialPort
	values map[string]bool
}

// Connect starts the reconnect loop against port and returns
// immediately; values become available as the peer reports them.
func Connect(ctx context.Context, port string) *Client {
	c := &Client{port: port, values: make(map[string]bool)}
	go c.reconnectLoop(ctx)
	return c
}

func (c *Client) reconnectLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
		cfg := &serial.Config{Name: c.port, Baud: 9600, ReadTimeout: 2 * time.Second}
		s, err := serial.OpenPort(cfg)
		if err != nil {
			log.Printf("security: opening %q: %v", c.port, err)
			continue
		}
		c.mu.Lock()
		c.s = s
		c.mu.Unlock()
		c.watch(ctx)
		c.mu.Lock()
		c.s = nil
		c.mu.Unlock()
	}
}

func (c *Client) watch(ctx context.Context) {
	defer c.s.Close()
	scanner := bufio.NewScanner(c.s)
	for scanner.Scan() {
		line := scanner.Text()
		// Lines are "KEY=0" or "KEY=1".
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}
		v, err := strconv.ParseBool(strings.TrimSpace(parts[1]))
		if err != nil {
			log.Printf("security: parsing %q: %v", line, err)
			continue
		}
		c.mu.Lock()
		c.values[strings.TrimSpace(parts[0])] = v
		c.mu.Unlock()
		if ctx.Err() != nil {
			return
		}
	}
}

// Safe implements daemon.Interlock: it reports whether the named key is
// currently true. An unreachable peer is a communication failure
// (non-nil error); a reachable peer reporting the key missing or false
// is a tripped interlock (false, nil).
func (c *Client) Safe(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.s == nil {
		return false, fmt.Errorf("security: not connected to %s", c.port)
	}
	return c.values[key], nil
}
