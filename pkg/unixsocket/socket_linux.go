// Package unixsocket provides a SOCK_SEQPACKET unix socket pair used as the
// control channel between the sandbox controller and the confined helper.
// SOCK_SEQPACKET keeps message boundaries so each send maps to one receive.
package unixsocket

import (
	"fmt"
	"net"
	"os"
	"sync"
	"syscall"
)

// oob size default to page size
const oobSize = 4096

// use pool to avoid allocation
var oobPool = sync.Pool{
	New: func() any {
		return make([]byte, oobSize)
	},
}

// Socket represents a unix socket
type Socket struct {
	*net.UnixConn
}

// Msg is the oob msg with the message
type Msg struct {
	Fds []int // unix rights
}

// NewSocket creates Socket conn struct using an existing unix socket fd
// created by socketpair and marks it close_on_exec (avoid fd leak).
// It needs a SOCK_SEQPACKET socket for reliable transfer.
func NewSocket(fd int) (*Socket, error) {
	file := os.NewFile(uintptr(fd), "unix-socket")
	if file == nil {
		return nil, fmt.Errorf("new socket: %d is not a valid fd", fd)
	}
	defer file.Close()
	syscall.CloseOnExec(int(file.Fd()))
	conn, err := net.FileConn(file)
	if err != nil {
		return nil, err
	}
	unixConn, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("new socket: fd %d is not a unix socket", fd)
	}
	return &Socket{unixConn}, nil
}

// NewSocketPair creates a connected unix socketpair using SOCK_SEQPACKET
func NewSocketPair() (*Socket, *Socket, error) {
	fd, err := syscall.Socketpair(syscall.AF_LOCAL, syscall.SOCK_SEQPACKET|syscall.SOCK_CLOEXEC, 0)
	if err != nil {
		return nil, nil, fmt.Errorf("socketpair: %w", err)
	}
	ins, err := NewSocket(fd[0])
	if err != nil {
		syscall.Close(fd[0])
		syscall.Close(fd[1])
		return nil, nil, fmt.Errorf("socketpair: failed to create ins: %w", err)
	}
	outs, err := NewSocket(fd[1])
	if err != nil {
		ins.Close()
		syscall.Close(fd[1])
		return nil, nil, fmt.Errorf("socketpair: failed to create outs: %w", err)
	}
	return ins, outs, nil
}

// SendMsg sends a datagram to the unix socket with optional unix rights
func (s *Socket) SendMsg(b []byte, m Msg) error {
	var oob []byte
	if len(m.Fds) > 0 {
		oob = syscall.UnixRights(m.Fds...)
	}
	_, _, err := s.WriteMsgUnix(b, oob, nil)
	return err
}

// RecvMsg receives a datagram from the unix socket and parses attached
// unix rights
func (s *Socket) RecvMsg(b []byte) (int, Msg, error) {
	oob := oobPool.Get().([]byte)
	defer oobPool.Put(oob)

	n, oobn, flags, _, err := s.ReadMsgUnix(b, oob)
	if err != nil {
		return 0, Msg{}, err
	}
	// SOCK_SEQPACKET silently discards the tail of a datagram larger than
	// the receive buffer; a truncated message must not decode as a short one
	if flags&syscall.MSG_TRUNC != 0 {
		return 0, Msg{}, fmt.Errorf("recvmsg: datagram truncated, buffer size %d too small", len(b))
	}
	msgs, err := syscall.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return 0, Msg{}, err
	}
	var msg Msg
	for _, m := range msgs {
		if m.Header.Level == syscall.SOL_SOCKET && m.Header.Type == syscall.SCM_RIGHTS {
			fds, err := syscall.ParseUnixRights(&m)
			if err != nil {
				return 0, Msg{}, err
			}
			msg.Fds = append(msg.Fds, fds...)
		}
	}
	return n, msg, nil
}
