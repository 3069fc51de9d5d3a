package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"io"
	"net"
	"strconv"
	"time"
)

type tcpClient struct{}

func newTCPClient() Client { return &tcpClient{} }

// TryActivate pings each port in the range and hands ACTIVATE to the first
// resident that answers. Once a resident is engaged its response is final;
// the scan never continues past it.
func (c *tcpClient) TryActivate(ctx context.Context) (bool, error) {
	deadline := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if d := time.Until(dl); d > 0 {
			deadline = d
		}
	}
	start, end := portRange()
	for port := start; port <= end; port++ {
		addr := net.JoinHostPort(residentHost, strconv.Itoa(port))
		if !ping(addr, deadline) {
			continue
		}
		conn, err := net.DialTimeout("tcp", addr, deadline)
		if err != nil {
			continue
		}
		_ = conn.SetDeadline(time.Now().Add(deadline))
		w := bufio.NewWriter(conn)
		if _, err := w.WriteString(activateRequest); err != nil {
			conn.Close()
			return true, err
		}
		if err := w.Flush(); err != nil {
			conn.Close()
			return true, err
		}
		br := bufio.NewReader(conn)
		status, err := br.ReadString('\n')
		if err != nil {
			conn.Close()
			return true, err
		}
		if status == ackResponse {
			conn.Close()
			return true, nil
		}
		if status == errResponse {
			msg, _ := io.ReadAll(br)
			conn.Close()
			return true, errors.New(string(msg))
		}
		conn.Close()
		return true, errors.New("unexpected response from resident")
	}
	return false, nil
}
