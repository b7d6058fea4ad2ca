package aprsfc

import (
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_tnc_send_frame_wire_format(t *testing.T) {
	var client, server = net.Pipe()
	defer client.Close()
	defer server.Close()

	var tnc = TNCAPRSInterface{conn: client}

	var done = make(chan []byte)
	go func() {
		var buf = make([]byte, 1024)
		var n, _ = server.Read(buf)
		done <- buf[:n]
	}()

	var source = Callsign{Call: "N0CALL", SSID: 7}
	require.NoError(t, tnc.SendFrame([]byte("{AAAA"), source, broadcast_destination, nil))

	var wire = <-done
	var want = kiss_encapsulate(ax25_encode_ui_frame(broadcast_destination, source, nil, []byte("{AAAA")))
	assert.Equal(t, want, wire)
}

func Test_tnc_send_frame_default_destination(t *testing.T) {
	var client, server = net.Pipe()
	defer client.Close()
	defer server.Close()

	var tnc = TNCAPRSInterface{conn: client}

	var done = make(chan []byte)
	go func() {
		var buf = make([]byte, 1024)
		var n, _ = server.Read(buf)
		done <- buf[:n]
	}()

	require.NoError(t, tnc.SendFrame([]byte("x"), Callsign{Call: "N0CALL"}, Callsign{}, nil))

	var wire = <-done
	var decoded, err = ax25_decode_ui_frame(decode_all_t(t, wire))
	require.NoError(t, err)
	assert.Equal(t, Callsign{Call: APP_CALLSIGN}, decoded.destination)
}

func decode_all_t(t *testing.T, kiss []byte) []byte {
	t.Helper()

	var frames = decode_all(t, kiss)
	require.Len(t, frames, 1)
	return frames[0]
}

func Test_tnc_receive_frame(t *testing.T) {
	var client, server = net.Pipe()
	defer client.Close()
	defer server.Close()

	var tnc = TNCAPRSInterface{conn: client}

	var source = Callsign{Call: "KN6FVU", SSID: 1}
	var digipeaters = []Callsign{{Call: "WIDE1", SSID: 1}}
	go func() {
		server.Write(kiss_encapsulate(ax25_encode_ui_frame(broadcast_destination, source, digipeaters, []byte("{AAAA"))))
	}()

	var frame, err = tnc.ReceiveFrame(1000)
	require.NoError(t, err)
	require.NotNil(t, frame)
	assert.Equal(t, source, frame.Source)
	assert.Equal(t, broadcast_destination, frame.Destination)
	assert.Equal(t, digipeaters, frame.Digipeaters)
	assert.Equal(t, []byte("{AAAA"), frame.Info)
}

func Test_tnc_receive_frame_timeout(t *testing.T) {
	var client, server = net.Pipe()
	defer client.Close()
	defer server.Close()

	var tnc = TNCAPRSInterface{conn: client}

	var frame, err = tnc.ReceiveFrame(50)
	require.NoError(t, err)
	assert.Nil(t, frame)
}

// A frame that is valid KISS but not valid AX.25 is dropped, not fatal.
func Test_tnc_receive_frame_malformed_ax25(t *testing.T) {
	var client, server = net.Pipe()
	defer client.Close()
	defer server.Close()

	var tnc = TNCAPRSInterface{conn: client}

	go func() {
		server.Write(kiss_encapsulate([]byte("way too short")))
	}()

	var frame, err = tnc.ReceiveFrame(100)
	require.NoError(t, err)
	assert.Nil(t, frame)
}
