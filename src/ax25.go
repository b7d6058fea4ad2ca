package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	AX.25 UI frame encoding and decoding.
 *
 * Description:	Only the subset of AX.25 needed for APRS:
 *		Unnumbered Information frames with no layer 3.
 *
 *		A frame consists of
 *
 *			* Destination address	(7 octets)
 *			* Source address	(7 octets)
 *			* 0 - 8 digipeaters	(7 octets each)
 *			* Control		(0x03 = UI)
 *			* PID			(0xF0 = no layer 3)
 *			* Information part
 *
 *		The HDLC flags, bit stuffing, and FCS are the TNC's
 *		problem, not ours.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"

	"github.com/charmbracelet/log"
)

var ax25_log = log.WithPrefix("AX25")

const AX25_UI_FRAME = 0x03
const AX25_NO_LAYER_3 = 0xF0

const AX25_MAX_REPEATERS = 8

// A decoded UI frame.
type ax25_frame struct {
	destination Callsign
	source      Callsign
	digipeaters []Callsign
	info        []byte
}

/*------------------------------------------------------------------
 *
 * Name:	ax25_encode_ui_frame
 *
 * Purpose:	Build the AX.25 frame contents for one UI frame.
 *
 * Inputs:	destination	- Destination address.
 *
 *		source		- Source address.
 *
 *		digipeaters	- Relay path, in order.  Up to 8.
 *
 *		info		- Information part.
 *
 * Returns:	Frame contents ready for KISS encapsulation.
 *
 * Errors:	More than 8 digipeaters is a caller bug.  Fatal.
 *
 *---------------------------------------------------------------*/

func ax25_encode_ui_frame(destination Callsign, source Callsign, digipeaters []Callsign, info []byte) []byte {
	if len(digipeaters) > AX25_MAX_REPEATERS {
		ax25_log.Fatalf("too many digipeaters specified: %d", len(digipeaters))
	}

	var frame = make([]byte, 0, (2+len(digipeaters))*AX25_ADDR_LEN+2+len(info))

	frame = append(frame, encode_ax25_callsign(destination, false)...)
	frame = append(frame, encode_ax25_callsign(source, len(digipeaters) == 0)...)
	for i, digipeater := range digipeaters {
		frame = append(frame, encode_ax25_callsign(digipeater, i == len(digipeaters)-1)...)
	}

	frame = append(frame, AX25_UI_FRAME)
	frame = append(frame, AX25_NO_LAYER_3)
	frame = append(frame, info...)

	return frame
}

/*------------------------------------------------------------------
 *
 * Name:	ax25_decode_ui_frame
 *
 * Purpose:	Take apart received frame contents.
 *
 * Inputs:	frame	- Unstuffed AX.25 frame from the TNC.
 *
 * Returns:	The decoded frame, or an error for anything malformed.
 *		Errors are not fatal; the caller drops the frame and
 *		keeps listening.
 *
 *---------------------------------------------------------------*/

func ax25_decode_ui_frame(frame []byte) (*ax25_frame, error) {
	var result ax25_frame
	var offset = 0
	var last bool
	var err error

	result.destination, last, offset, err = decode_ax25_callsign(frame, offset)
	if err != nil {
		return nil, err
	}

	result.source, last, offset, err = decode_ax25_callsign(frame, offset)
	if err != nil {
		return nil, err
	}

	for i := 0; !last; i++ {
		if i == AX25_MAX_REPEATERS {
			return nil, fmt.Errorf("too many digipeaters")
		}

		var digipeater Callsign
		digipeater, last, offset, err = decode_ax25_callsign(frame, offset)
		if err != nil {
			return nil, err
		}

		result.digipeaters = append(result.digipeaters, digipeater)
	}

	if offset+2 > len(frame) {
		return nil, fmt.Errorf("frame too short for control and PID")
	}

	if frame[offset] != AX25_UI_FRAME {
		return nil, fmt.Errorf("invalid frame type: 0x%02x", frame[offset])
	}
	offset++

	if frame[offset] != AX25_NO_LAYER_3 {
		return nil, fmt.Errorf("invalid layer 3 protocol: 0x%02x", frame[offset])
	}
	offset++

	result.info = frame[offset:]
	return &result, nil
}
