// Package echo implements the demonstration echo service used by the
// slip command.
package echo

import (
	"context"
	"errors"
	"io"
	"net"
	"slices"

	"github.com/danderson/slip"
	"github.com/rs/zerolog"
)

// Handler returns a slip.Handler that answers every message with the
// message's bytes in reverse order, so "hallo" comes back as "ollah".
//
// The conversation ends when the client sends an empty message or
// closes the connection. Protocol errors are logged and skipped.
func Handler() slip.Handler {
	return slip.HandlerFunc(serve)
}

func serve(ctx context.Context, c *slip.Conn) {
	log := zerolog.Ctx(ctx)
	for {
		msg, err := c.ReadMsg()
		if slip.IsProtocolError(err) {
			log.Warn().Err(err).Msg("dropping invalid packet")
			continue
		} else if errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed) {
			return
		} else if err != nil {
			log.Error().Err(err).Msg("read failed")
			return
		}

		log.Debug().Hex("decoded", msg).Msg("received message")
		if len(msg) == 0 {
			log.Debug().Msg("empty message, closing down")
			return
		}

		resp := Reverse(msg)
		log.Debug().Hex("raw", slip.Encode(resp)).Msg("sending response")
		if err := c.WriteMsg(resp); err != nil {
			log.Error().Err(err).Msg("write failed")
			return
		}
	}
}

// Reverse returns a copy of msg with its bytes in reverse order.
func Reverse(msg []byte) []byte {
	ret := slices.Clone(msg)
	slices.Reverse(ret)
	return ret
}
