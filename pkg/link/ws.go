package link

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/url"
	"sync"

	"github.com/golang/glog"
	"golang.org/x/net/websocket"
)

// wsOrigin is sent when dialing, the server side does not check it.
const wsOrigin = "http://localhost/"

func dialWebSocket(u *url.URL) (io.ReadWriteCloser, error) {
	conn, err := websocket.Dial(u.String(), "", wsOrigin)
	if err != nil {
		return nil, err
	}
	conn.PayloadType = websocket.BinaryFrame
	return conn, nil
}

// wsConn keeps the server handler alive until the connection is closed.
type wsConn struct {
	*websocket.Conn
	done chan struct{}
	once sync.Once
}

func (c *wsConn) Close() error {
	err := c.Conn.Close()
	c.once.Do(func() { close(c.done) })
	return err
}

func listenWebSocket(u *url.URL) (*Listener, error) {
	l, err := net.Listen("tcp", u.Host)
	if err != nil {
		return nil, err
	}
	path := u.Path
	if path == "" {
		path = "/"
	}
	connCh := make(chan *wsConn)
	closeCh := make(chan struct{})
	mux := http.NewServeMux()
	mux.Handle(path, websocket.Handler(func(conn *websocket.Conn) {
		conn.PayloadType = websocket.BinaryFrame
		c := &wsConn{Conn: conn, done: make(chan struct{})}
		select {
		case connCh <- c:
			<-c.done
		case <-closeCh:
		}
	}))
	server := &http.Server{Handler: mux}
	go func() {
		if err := server.Serve(l); err != nil && err != http.ErrServerClosed {
			glog.V(2).Infof("link: websocket server: %v", err)
		}
	}()
	var closeOnce sync.Once
	return &Listener{
		listener: l,
		accept: func(ctx context.Context) (io.ReadWriteCloser, error) {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-closeCh:
				return nil, ErrClosed
			case c := <-connCh:
				return c, nil
			}
		},
		close: func() error {
			closeOnce.Do(func() { close(closeCh) })
			return l.Close()
		},
	}, nil
}
