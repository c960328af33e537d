package ipc

import (
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
)

// Commands understood by the loop.
const (
	CmdTrigger = "trigger"
	CmdQuit    = "quit"
)

// DefaultSocketPath is used when no socket is configured.
var DefaultSocketPath = filepath.Join(os.TempDir(), "mina.sock")

type ControlMessage struct {
	Cmd string `json:"cmd"`
}

// Server accepts one JSON ControlMessage per connection.
type Server struct {
	ln   net.Listener
	path string
}

// StartServer listens on the unix socket at path, replacing a stale socket
// file, and calls handler for every message received.
func StartServer(path string, handler func(ControlMessage)) (*Server, error) {
	os.Remove(path)

	ln, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}

	go func() {
		for {
			conn, err := ln.Accept()
			if errors.Is(err, net.ErrClosed) {
				return
			}
			if err != nil {
				continue
			}
			go handleConn(conn, handler)
		}
	}()

	return &Server{ln: ln, path: path}, nil
}

func (s *Server) Close() error {
	err := s.ln.Close()
	os.Remove(s.path)
	return err
}

func handleConn(conn net.Conn, handler func(ControlMessage)) {
	defer conn.Close()

	var msg ControlMessage
	dec := json.NewDecoder(conn)
	if err := dec.Decode(&msg); err != nil {
		return
	}
	handler(msg)
}

func SendCommand(path, cmd string) error {
	conn, err := net.Dial("unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	enc := json.NewEncoder(conn)
	return enc.Encode(ControlMessage{Cmd: cmd})
}
