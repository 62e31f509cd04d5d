package libp2pgossip

import (
	"io"
	"time"

	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/danpeer/peernode/peernode"
	"github.com/danpeer/peernode/peernode/wire"
)

// maxWhisperBytes bounds a single inbound whisper stream's payload; the
// wire format has no separate length cap of its own.
const maxWhisperBytes = 1 << 20

func decodePeerID(uuid string) (peer.ID, error) {
	return peer.Decode(uuid)
}

// Whisper implements peernode.GossipTransport: open a fresh stream to
// uuid on the whisper protocol, write one framed payload, and close
// (spec.md §4.C "whisper"). go-libp2p-kad-dht's FindPeer backs the
// implicit address resolution libp2p performs when the peerstore lacks
// a dialable address for uuid.
func (t *Transport) Whisper(uuid string, frames [][]byte) error {
	start := time.Now()
	id, err := decodePeerID(uuid)
	if err != nil {
		return err
	}

	if len(t.host.Peerstore().Addrs(id)) == 0 {
		if info, err := t.dht.FindPeer(t.ctx, id); err == nil {
			t.host.Peerstore().AddAddrs(info.ID, info.Addrs, time.Hour)
		}
	}

	s, err := t.host.NewStream(t.ctx, id, whisperProtocol)
	if err != nil {
		return err
	}
	defer s.Close()

	err = wire.WriteTo(s, wire.Frames(frames))
	if t.metrics != nil {
		t.metrics.WhisperLatency.Observe(time.Since(start).Seconds())
	}
	return err
}

// handleWhisperStream is the receiving side's stream handler
// (spec.md §4.C "whisper"): read the one framed payload a sender writes
// per stream and emit Event.Whisper.
func (t *Transport) handleWhisperStream(s network.Stream) {
	defer s.Close()
	data, err := io.ReadAll(io.LimitReader(s, maxWhisperBytes))
	if err != nil {
		return
	}
	frames, err := wire.Unmarshal(data)
	if err != nil {
		return
	}

	remote := s.Conn().RemotePeer()
	name := t.peerName(remote)
	if name == "" {
		return
	}
	t.liveness.touch(remote)
	t.emit(peernode.Event{
		Kind:    peernode.EventWhisper,
		Peer:    name,
		UUID:    remote.String(),
		Payload: frames,
	})
}
