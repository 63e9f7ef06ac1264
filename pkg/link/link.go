// Package link opens the byte streams node transports run over. An
// endpoint is addressed by URL:
//
//	serial:///dev/ttyUSB0?baud=115200
//	tcp://host:port
//	tcp+listen://:port
//	ws://host:port/path
//	ws+listen://:port/path
//	mqtt-serial://broker:port/prefix/name
//	mqtt-serial+listen://broker:port/prefix/name
package link

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/url"
	"strconv"

	"github.com/golang/glog"
	"github.com/jacobsa/go-serial/serial"
)

// DefaultBaudRate is the serial speed when not specified.
const DefaultBaudRate = 115200

// Open opens the endpoint addressed by rawURL. Listening endpoints block
// until the first peer connects.
func Open(ctx context.Context, rawURL string) (io.ReadWriteCloser, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "serial":
		return openSerial(u)
	case "tcp":
		var d net.Dialer
		return d.DialContext(ctx, "tcp", u.Host)
	case "ws":
		return dialWebSocket(u)
	case "mqtt-serial", "mqtt-serial+listen":
		return openMQTTSerial(u, u.Scheme == "mqtt-serial+listen")
	case "tcp+listen", "ws+listen":
		l, err := Listen(rawURL)
		if err != nil {
			return nil, err
		}
		defer l.Close()
		glog.Infof("link: waiting for peer on %s", l.Addr())
		return l.Accept(ctx)
	}
	return nil, fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
}

func openSerial(u *url.URL) (io.ReadWriteCloser, error) {
	baud := DefaultBaudRate
	if s := u.Query().Get("baud"); s != "" {
		v, err := strconv.Atoi(s)
		if err != nil {
			return nil, fmt.Errorf("invalid baud rate %q: %v", s, err)
		}
		baud = v
	}
	name := u.Path
	if name == "" {
		name = u.Opaque
	}
	return serial.Open(serial.OpenOptions{
		PortName:        name,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		ParityMode:      serial.PARITY_NONE,
		MinimumReadSize: 1,
	})
}

// Listener accepts peers on a listening endpoint.
type Listener struct {
	listener net.Listener
	accept   func(ctx context.Context) (io.ReadWriteCloser, error)
	close    func() error
}

// Listen starts listening on a tcp+listen or ws+listen endpoint.
func Listen(rawURL string) (*Listener, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "tcp+listen":
		l, err := net.Listen("tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return &Listener{
			listener: l,
			accept: func(ctx context.Context) (io.ReadWriteCloser, error) {
				return acceptTCP(ctx, l)
			},
			close: l.Close,
		}, nil
	case "ws+listen":
		return listenWebSocket(u)
	}
	return nil, fmt.Errorf("%w: %q", ErrScheme, u.Scheme)
}

// Addr is the local listening address.
func (l *Listener) Addr() net.Addr {
	return l.listener.Addr()
}

// Accept waits for the next peer.
func (l *Listener) Accept(ctx context.Context) (io.ReadWriteCloser, error) {
	return l.accept(ctx)
}

// Close stops listening. Accepted connections stay open.
func (l *Listener) Close() error {
	return l.close()
}

func acceptTCP(ctx context.Context, l net.Listener) (io.ReadWriteCloser, error) {
	type result struct {
		conn net.Conn
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		conn, err := l.Accept()
		ch <- result{conn, err}
	}()
	select {
	case <-ctx.Done():
		l.Close()
		if r := <-ch; r.conn != nil {
			r.conn.Close()
		}
		return nil, ctx.Err()
	case r := <-ch:
		return r.conn, r.err
	}
}
