package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"net"
	"time"
)

const (
	residentHost    = "127.0.0.1"
	pingRequest     = "PING\n"
	pongResponse    = "PONG\n"
	activateRequest = "ACTIVATE\n"
	ackResponse     = "OK\n"
	errResponse     = "ERR\n"
)

type tcpServer struct {
	lis      net.Listener
	incoming chan *tcpConn
	port     int
}

func newTCPServer() Server { return &tcpServer{incoming: make(chan *tcpConn, 8)} }

// Start binds only the start port of the range. Clients scan the whole
// range, so a resident bound anywhere in it is still found.
func (s *tcpServer) Start(ctx context.Context) error {
	if s.lis != nil {
		return nil
	}
	start, _ := portRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		log.Printf("singleinstance: bind %s failed: %v", addr, err)
		return err
	}
	s.lis = lis
	s.port = start
	log.Printf("singleinstance: listening on %s", addr)
	go s.acceptLoop(ctx)
	return nil
}

func (s *tcpServer) Port() int { return s.port }

func (s *tcpServer) acceptLoop(ctx context.Context) {
	for {
		c, err := s.lis.Accept()
		if err != nil {
			return
		}
		remote := c.RemoteAddr().String()
		_ = c.SetDeadline(time.Now().Add(3 * time.Second))
		br := bufio.NewReader(c)
		line, _ := br.ReadString('\n')
		bw := bufio.NewWriter(c)
		switch line {
		case pingRequest:
			log.Printf("singleinstance: PING from %s", remote)
			_, _ = bw.WriteString(pongResponse)
			_ = bw.Flush()
			_ = c.Close()
		case activateRequest:
			log.Printf("singleinstance: ACTIVATE from %s", remote)
			_ = c.SetDeadline(time.Time{})
			select {
			case s.incoming <- &tcpConn{c: c, w: bw}:
			case <-ctx.Done():
				_ = c.Close()
				return
			}
		default:
			log.Printf("singleinstance: unknown request %q from %s", line, remote)
			_, _ = bw.WriteString(errResponse + "unknown request")
			_ = bw.Flush()
			_ = c.Close()
		}
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	if s.lis != nil {
		_ = s.lis.Close()
		s.lis = nil
	}
	close(s.incoming)
	return nil
}

type tcpConn struct {
	c net.Conn
	w *bufio.Writer
}

func (tc *tcpConn) Ack() error {
	if _, err := tc.w.WriteString(ackResponse); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Reject(msg string) error {
	if _, err := tc.w.WriteString(errResponse + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
