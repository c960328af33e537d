// Package cue provides the explicit user actions that start a turn.
package cue

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/DogFoodDayZ/mina-windows-voice-loop/internal/ipc"
)

// Keyboard waits for Enter on an input stream. End of input ends the loop.
type Keyboard struct {
	in     *bufio.Reader
	out    io.Writer
	prompt string

	once  sync.Once
	lines chan struct{}
}

func NewKeyboard(in io.Reader, out io.Writer, prompt string) *Keyboard {
	return &Keyboard{
		in:     bufio.NewReader(in),
		out:    out,
		prompt: prompt,
		lines:  make(chan struct{}),
	}
}

// Wait returns nil for a line, io.EOF when input is closed, or the context
// error.
func (k *Keyboard) Wait(ctx context.Context) error {
	if k.prompt != "" {
		fmt.Fprint(k.out, k.prompt)
	}

	// reads block without a way to interrupt them, so one goroutine owns
	// the reader for the lifetime of the process
	k.once.Do(func() { go k.read() })

	select {
	case _, ok := <-k.lines:
		if !ok {
			return io.EOF
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (k *Keyboard) read() {
	defer close(k.lines)
	for {
		line, err := k.in.ReadString('\n')
		if line != "" {
			k.lines <- struct{}{}
		}
		if err != nil {
			return
		}
	}
}

// Socket waits for a trigger command on the control socket.
type Socket struct {
	srv      *ipc.Server
	triggers chan struct{}
	quit     chan struct{}
	quitOnce sync.Once
}

func ListenSocket(path string) (*Socket, error) {
	s := &Socket{
		triggers: make(chan struct{}, 1),
		quit:     make(chan struct{}),
	}

	srv, err := ipc.StartServer(path, s.handle)
	if err != nil {
		return nil, err
	}
	s.srv = srv
	return s, nil
}

func (s *Socket) handle(msg ipc.ControlMessage) {
	switch msg.Cmd {
	case ipc.CmdTrigger:
		// at most one trigger waits for the next turn
		select {
		case s.triggers <- struct{}{}:
		default:
		}
	case ipc.CmdQuit:
		s.quitOnce.Do(func() { close(s.quit) })
	}
}

// Wait returns nil on trigger and io.EOF after a quit command.
func (s *Socket) Wait(ctx context.Context) error {
	select {
	case <-s.quit:
		return io.EOF
	default:
	}

	select {
	case <-s.triggers:
		return nil
	case <-s.quit:
		return io.EOF
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Socket) Close() error {
	return s.srv.Close()
}
