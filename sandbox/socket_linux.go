package sandbox

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"sync"

	"github.com/sandtrace/go-sandtrace/pkg/unixsocket"
)

// 128k buffsize, large enough for a maximum-length unwind result while
// staying below the default unix socket send buffer
const bufferSize = 128 << 10

var bufferPool = sync.Pool{
	New: func() any {
		return make([]byte, bufferSize)
	},
}

// socket wraps the seqpacket socket with gob encoding. It is not safe for
// concurrent use; the protocol is single threaded.
type socket struct {
	*unixsocket.Socket

	recvBuff bytes.Buffer
	decoder  *gob.Decoder

	sendBuff bytes.Buffer
	encoder  *gob.Encoder
}

func newSocket(s *unixsocket.Socket) *socket {
	soc := socket{
		Socket: s,
	}
	soc.decoder = gob.NewDecoder(&soc.recvBuff)
	soc.encoder = gob.NewEncoder(&soc.sendBuff)

	return &soc
}

// Recv decodes a single message from the socket
func (s *socket) Recv(e any) error {
	buff := bufferPool.Get().([]byte)
	defer bufferPool.Put(buff)

	n, _, err := s.Socket.RecvMsg(buff)
	if err != nil {
		return fmt.Errorf("recv: %w", err)
	}
	s.recvBuff.Reset()
	s.recvBuff.Write(buff[:n])

	if err := s.decoder.Decode(e); err != nil {
		return fmt.Errorf("recv: failed to decode: %w", err)
	}
	return nil
}

// Send encodes a single message onto the socket
func (s *socket) Send(e any) error {
	s.sendBuff.Reset()
	if err := s.encoder.Encode(e); err != nil {
		return fmt.Errorf("send: failed to encode: %w", err)
	}

	if err := s.Socket.SendMsg(s.sendBuff.Bytes(), unixsocket.Msg{}); err != nil {
		return fmt.Errorf("send: %w", err)
	}
	return nil
}
