package aprsfc

import (
	"fmt"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// An APRS transport that records transmitted frames and plays back a
// queue of received ones.  Standing in for the radio in tests.
type loopback_aprs_interface struct {
	sent     []ReceivedFrame
	incoming []ReceivedFrame
}

func (l *loopback_aprs_interface) SendFrame(info []byte, source Callsign, destination Callsign, digipeaters []Callsign) error {
	l.sent = append(l.sent, ReceivedFrame{
		Source:      source,
		Destination: destination,
		Digipeaters: digipeaters,
		Info:        append([]byte(nil), info...),
	})

	return nil
}

func (l *loopback_aprs_interface) ReceiveFrame(timeout_ms uint32) (*ReceivedFrame, error) {
	if len(l.incoming) == 0 {
		return nil, fmt.Errorf("no more frames")
	}

	var frame = l.incoming[0]
	l.incoming = l.incoming[1:]
	return &frame, nil
}

func fast_aprs_config() APRSConfig {
	return APRSConfig{
		MaxPacketSize:     40,
		TransmitIntervalS: 0.001,
		RetransmitCount:   1,
	}
}

func Test_send_broadcast_packet_frames(t *testing.T) {
	var loopback loopback_aprs_interface
	var aprs = new_aprs_packet_interface(fast_aprs_config(), &loopback)

	var packet = test_packet()
	var source = Callsign{Call: "N0CALL", SSID: 7}
	var digipeaters = []Callsign{{Call: "WIDE1", SSID: 1}}

	require.NoError(t, aprs.send_broadcast_packet(packet, source, digipeaters))

	var serialized_len = len(packet_serialize(packet))
	var want_frames = (serialized_len + 39) / 40
	require.Len(t, loopback.sent, want_frames)

	for _, frame := range loopback.sent {
		assert.Equal(t, source, frame.Source)
		assert.Equal(t, broadcast_destination, frame.Destination)
		assert.Equal(t, digipeaters, frame.Digipeaters)
		assert.Equal(t, byte('{'), frame.Info[0])
	}
}

func Test_send_broadcast_packet_retransmits(t *testing.T) {
	var loopback loopback_aprs_interface
	var config = fast_aprs_config()
	config.RetransmitCount = 3
	var aprs = new_aprs_packet_interface(config, &loopback)

	require.NoError(t, aprs.send_broadcast_packet(test_packet(), Callsign{Call: "N0CALL"}, nil))

	var serialized_len = len(packet_serialize(test_packet()))
	var frames_per_pass = (serialized_len + 39) / 40
	assert.Len(t, loopback.sent, 3*frames_per_pass)
}

// Transmissions are paced with absolute deadlines: N chunks take at
// least (N-1) intervals.
func Test_send_broadcast_packet_cadence(t *testing.T) {
	var loopback loopback_aprs_interface
	var config = fast_aprs_config()
	config.TransmitIntervalS = 0.02
	var aprs = new_aprs_packet_interface(config, &loopback)

	var start = time.Now()
	require.NoError(t, aprs.send_broadcast_packet(test_packet(), Callsign{Call: "N0CALL"}, nil))
	var elapsed = time.Since(start)

	var sent = len(loopback.sent)
	require.Greater(t, sent, 1)
	assert.GreaterOrEqual(t, elapsed, time.Duration(float64(sent-1)*0.02*float64(time.Second)))
}

func Test_get_next_payload_id_skips_zero(t *testing.T) {
	var aprs = new_aprs_packet_interface(fast_aprs_config(), &loopback_aprs_interface{})
	aprs.next_payload_id = 0xFFFFFFFF

	assert.Equal(t, uint32(0xFFFFFFFF), aprs.get_next_payload_id())
	assert.Equal(t, uint32(1), aprs.get_next_payload_id())
	assert.Equal(t, uint32(2), aprs.get_next_payload_id())
}

// End to end through the packet layer: send on one interface, replay
// the transmitted frames (shuffled, with a duplicate) into a receiver.
func Test_receive_broadcast_packet_end_to_end(t *testing.T) {
	var sender_loopback loopback_aprs_interface
	var sender = new_aprs_packet_interface(fast_aprs_config(), &sender_loopback)

	var source = Callsign{Call: "KN6FVU", SSID: 1}
	require.NoError(t, sender.send_broadcast_packet(test_packet(), source, nil))
	require.Greater(t, len(sender_loopback.sent), 1)

	var incoming = append([]ReceivedFrame(nil), sender_loopback.sent...)
	rand.New(rand.NewSource(1)).Shuffle(len(incoming), func(i, j int) {
		incoming[i], incoming[j] = incoming[j], incoming[i]
	})
	incoming = append(incoming, incoming[0]) // One duplicate for good measure.

	var receiver_loopback = loopback_aprs_interface{incoming: incoming}
	var receiver = new_aprs_packet_interface(fast_aprs_config(), &receiver_loopback)

	var packet, received_source, _, err = receiver.receive_broadcast_packet()
	require.NoError(t, err)
	assert.Equal(t, test_packet(), packet)
	assert.Equal(t, source, received_source)

	// Only the one delivery; the leftover duplicate produces nothing.
	var _, _, _, again_err = receiver.receive_broadcast_packet()
	assert.Error(t, again_err)
}

// Frames for other destinations and junk payloads are ignored.
func Test_receive_broadcast_packet_filters(t *testing.T) {
	var sender_loopback loopback_aprs_interface
	var sender = new_aprs_packet_interface(fast_aprs_config(), &sender_loopback)
	require.NoError(t, sender.send_broadcast_packet(test_packet(), Callsign{Call: "N0CALL"}, nil))

	var incoming = []ReceivedFrame{
		// A position report for someone else.
		{
			Source:      Callsign{Call: "W1ABC"},
			Destination: Callsign{Call: "APX216"},
			Info:        []byte("=3724.69N/12150.80Wx"),
		},
		// Broadcast destination but not our data type.
		{
			Source:      Callsign{Call: "W1ABC"},
			Destination: broadcast_destination,
			Info:        []byte("!3724.69N/12150.80Wx"),
		},
		// Broadcast destination but unparseable base64.
		{
			Source:      Callsign{Call: "W1ABC"},
			Destination: broadcast_destination,
			Info:        []byte("{not*base64*at*all"),
		},
	}
	incoming = append(incoming, sender_loopback.sent...)

	var receiver_loopback = loopback_aprs_interface{incoming: incoming}
	var receiver = new_aprs_packet_interface(fast_aprs_config(), &receiver_loopback)

	var packet, _, _, err = receiver.receive_broadcast_packet()
	require.NoError(t, err)
	assert.Equal(t, test_packet(), packet)
}
