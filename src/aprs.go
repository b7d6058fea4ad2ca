package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Send and receive application packets over APRS.
 *
 * Description:	An APRS information part holds well under 256 bytes,
 *		so a serialized Packet is fragmented into numbered
 *		chunks.  Each chunk is itself serialized, base64
 *		encoded, prefixed with the APRS user-defined data
 *		type indicator "{", and transmitted as one UI frame.
 *
 *		Two transports implement the frame level operations:
 *		a KISS TNC attached by TCP, and the APRS-IS internet
 *		service (receive only).  This layer does not care
 *		which one it holds.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/base64"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

var aprs_log = log.WithPrefix("APRSInterface")

// The APRS user-defined data type indicator.
const APRS_DATA_TYPE_USER_DEFINED = "{"

// One frame as heard from the network.
type ReceivedFrame struct {
	Source      Callsign
	Destination Callsign
	Digipeaters []Callsign
	Info        []byte
}

// The frame level operations common to both transports.
// Implementations own their socket for their whole lifetime.
type APRSInterface interface {
	// Sends one UI frame.
	SendFrame(info []byte, source Callsign, destination Callsign, digipeaters []Callsign) error

	// Receives one UI frame.  Returns nil (no error) when the timeout
	// expires or a malformed frame was dropped; callers retry.
	// timeout_ms of 0 means wait indefinitely.
	ReceiveFrame(timeout_ms uint32) (*ReceivedFrame, error)
}

// Pacing and sizing knobs for broadcast transmission.
type APRSConfig struct {
	MaxPacketSize     int     /* Largest chunk payload, bytes. */
	TransmitIntervalS float64 /* Seconds between transmissions. */
	RetransmitCount   int     /* How many complete passes to send. */
}

// Fragmentation and reassembly of packets over an APRS transport.
type APRSPacketInterface struct {
	config          APRSConfig
	iface           APRSInterface
	next_payload_id uint32
	chunk_receiver  packet_chunk_receiver
}

func new_aprs_packet_interface(config APRSConfig, iface APRSInterface) *APRSPacketInterface {
	return &APRSPacketInterface{
		config: config,
		iface:  iface,

		// Seed from the clock so ids from consecutive runs of the
		// tool do not collide at a receiver that has banked ids.
		next_payload_id: uint32(dtime_now_us()),
	}
}

/*-------------------------------------------------------------------
 *
 * Name:        send_broadcast_packet
 *
 * Purpose:     Fragment one packet and transmit all of its chunks.
 *
 * Inputs:	packet		- The application message.
 *
 *		source		- Our station callsign.
 *
 *		digipeaters	- Relay path for all frames.
 *
 * Description:	Each retransmission pass sends every chunk once, in
 *		ascending order.  Transmissions are spaced at the
 *		configured interval using absolute deadlines: the next
 *		deadline is the previous deadline plus the interval,
 *		so the channel occupancy stays fixed no matter how
 *		long an individual send takes.
 *
 *-----------------------------------------------------------------*/

func (a *APRSPacketInterface) send_broadcast_packet(packet *Packet, source Callsign, digipeaters []Callsign) error {
	var serialized = packet_serialize(packet)

	var payload_id = a.get_next_payload_id()
	aprs_log.Infof("sending payload_id %d", payload_id)

	var next_packet_time = time.Now()
	for pass := 1; pass <= a.config.RetransmitCount; pass++ {
		var chunk_id = uint32(1)
		for offset := 0; offset < len(serialized); {
			var chunk_size = len(serialized) - offset
			if chunk_size > a.config.MaxPacketSize {
				chunk_size = a.config.MaxPacketSize
			}

			var chunk = PacketChunk{
				PayloadID:    payload_id,
				ChunkID:      chunk_id,
				RetransmitID: uint32(pass),
				Payload:      serialized[offset : offset+chunk_size],
			}
			if offset == 0 {
				chunk.TotalPayloadSize = uint32(len(serialized))
			}

			if err := a.send_packet_chunk(&chunk, source, broadcast_destination, digipeaters); err != nil {
				return fmt.Errorf("failed to send packet chunk: %w", err)
			}

			aprs_log.Infof("sent broadcast chunk_id=%d, offset=%d, chunk_size=%d, total_size=%d, retransmit=%d",
				chunk.ChunkID, offset, chunk_size, len(serialized), pass)

			chunk_id++
			offset += chunk_size

			// Pause for the next transmission.
			next_packet_time = next_packet_time.Add(time.Duration(a.config.TransmitIntervalS * float64(time.Second)))
			sleep_until(next_packet_time)
		}
	}

	return nil
}

func (a *APRSPacketInterface) send_packet_chunk(chunk *PacketChunk, source Callsign, destination Callsign, digipeaters []Callsign) error {
	var serialized = packet_chunk_serialize(chunk)

	var info = APRS_DATA_TYPE_USER_DEFINED + base64.StdEncoding.EncodeToString(serialized)
	return a.iface.SendFrame([]byte(info), source, destination, digipeaters)
}

/*-------------------------------------------------------------------
 *
 * Name:        receive_broadcast_packet
 *
 * Purpose:     Block until one complete packet has been reassembled.
 *
 * Returns:	The packet along with the source station and the
 *		digipeater path of the frame that completed it.
 *
 * Description:	Frames not addressed to the broadcast callsign, and
 *		chunks that fail to decode, are dropped and the wait
 *		continues.
 *
 *-----------------------------------------------------------------*/

func (a *APRSPacketInterface) receive_broadcast_packet() (*Packet, Callsign, []Callsign, error) {
	for {
		var frame, err = a.iface.ReceiveFrame(0)
		if err != nil {
			return nil, Callsign{}, nil, fmt.Errorf("failed to receive broadcast packet: %w", err)
		}

		if frame == nil {
			continue /* Dropped frame; keep listening. */
		}

		if frame.Destination != broadcast_destination {
			continue
		}

		var info = string(frame.Info)
		if !strings.HasPrefix(info, APRS_DATA_TYPE_USER_DEFINED) {
			aprs_log.Errorf("invalid payload")
			continue
		}

		var serialized, decode_err = base64.StdEncoding.DecodeString(info[1:])
		if decode_err != nil {
			aprs_log.Errorf("failed to decode chunk base64: %s", decode_err)
			continue
		}

		var chunk, parse_err = packet_chunk_parse(serialized)
		if parse_err != nil {
			aprs_log.Errorf("received malformed packet chunk: %s", parse_err)
			continue
		}

		if packet := a.chunk_receiver.push_packet_chunk(chunk); packet != nil {
			return packet, frame.Source, frame.Digipeaters, nil
		}
	}
}

// Allocate a payload id, skipping zero so that zero can mean
// "unset" on the wire.
func (a *APRSPacketInterface) get_next_payload_id() uint32 {
	var id = a.next_payload_id
	a.next_payload_id++

	if id == 0 {
		id = a.next_payload_id
		a.next_payload_id++
	}

	return id
}
