package aprsfc

import (
	"encoding/base64"
	"math/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func decode_frame_chunk(t *testing.T, frame ReceivedFrame) *PacketChunk {
	t.Helper()

	var serialized, err = base64.StdEncoding.DecodeString(string(frame.Info[1:]))
	require.NoError(t, err)

	var chunk, parse_err = packet_chunk_parse(serialized)
	require.NoError(t, parse_err)
	return chunk
}

// The whole stack minus the radio: a file goes through the file
// sender, the packet layer, and the frame fragmentation; the frames
// come back shuffled and duplicated; the file receiver writes a byte
// identical copy.
func Test_end_to_end_file_copy(t *testing.T) {
	var contents = make([]byte, 250)
	for i := range contents {
		contents[i] = byte(i * 7)
	}

	var send_dir = t.TempDir()
	var path = filepath.Join(send_dir, "data.bin")
	require.NoError(t, os.WriteFile(path, contents, 0644))

	var loopback loopback_aprs_interface
	var sender_aprs = new_aprs_packet_interface(fast_aprs_config(), &loopback)
	var sender = new_file_sender(sender_aprs)
	require.NoError(t, sender.send_file(path, 100, Callsign{Call: "N0CALL", SSID: 7}, Callsign{}, nil))

	// Shuffle within each payload: the radio can reorder chunk
	// arrivals, and the receiver must not care.  Payloads themselves
	// stay in order, as a single RF channel delivers them.
	var incoming = append([]ReceivedFrame(nil), loopback.sent...)
	var rng = rand.New(rand.NewSource(42))

	var by_payload = map[uint32][]int{}
	var payload_order []uint32
	for i := range incoming {
		var chunk = decode_frame_chunk(t, incoming[i])
		if _, seen := by_payload[chunk.PayloadID]; !seen {
			payload_order = append(payload_order, chunk.PayloadID)
		}
		by_payload[chunk.PayloadID] = append(by_payload[chunk.PayloadID], i)
	}

	var shuffled []ReceivedFrame
	for _, payload_id := range payload_order {
		var indexes = by_payload[payload_id]
		rng.Shuffle(len(indexes), func(i, j int) {
			indexes[i], indexes[j] = indexes[j], indexes[i]
		})
		for _, i := range indexes {
			shuffled = append(shuffled, incoming[i])
		}
		// And a duplicate of one frame per payload.
		shuffled = append(shuffled, incoming[indexes[0]])
	}

	test_chdir(t, t.TempDir())

	var receiver_aprs = new_aprs_packet_interface(fast_aprs_config(), &loopback_aprs_interface{incoming: shuffled})
	var receiver = new_file_receiver(receiver_aprs, nil)

	for {
		var packet, _, _, err = receiver_aprs.receive_broadcast_packet()
		if err != nil {
			break /* Out of frames. */
		}

		switch {
		case packet.Header != nil:
			receiver.handle_transfer_header(packet.Header)
		case packet.Chunk != nil:
			receiver.handle_transfer_chunk(packet.Chunk)
		}
	}

	var got, err = os.ReadFile("data.bin")
	require.NoError(t, err)
	assert.Equal(t, contents, got)
}
