package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	KISS framing over a stream connection.
 *
 * Description: The KISS TNC protocol is described in
 *		http://www.ka9q.net/papers/kiss.html
 *
 * 		Briefly, a frame is composed of
 *
 *			* FEND (0xC0)
 *			* Command byte - radio channel in the upper nybble,
 *			  command in the lower.  0 is a data frame.
 *			* Contents - with special escape sequences so a
 *			  0xC0 byte in the data is not taken as end of frame.
 *			* FEND
 *
 *		We only ever send data frames on channel 0.  Received
 *		data frames are accepted from any channel.
 *
 *---------------------------------------------------------------*/

import (
	"net"
	"time"

	"github.com/charmbracelet/log"
)

var kiss_log = log.WithPrefix("KISS")

/*
 * Special characters used by SLIP protocol.
 */

const FEND = 0xC0
const FESC = 0xDB
const TFEND = 0xDC
const TFESC = 0xDD

const KISS_CMD_DATA_FRAME = 0

type kiss_decode_state int

const (
	KS_IDLE       kiss_decode_state = iota /* Looking for FEND to start a frame. */
	KS_EXPECT_CMD                          /* FEND seen, next byte is the command. */
	KS_IN_FRAME                            /* Collecting frame contents. */
	KS_IN_ESCAPE                           /* FESC seen, expecting TFEND or TFESC. */
)

/*-------------------------------------------------------------------
 *
 * Name:        kiss_encapsulate
 *
 * Purpose:     Encapsulate an AX.25 frame into KISS format.
 *
 * Inputs:	body	- The frame contents.  Note that this is
 *			  "binary" data and can contain nul (0x00)
 *			  values.  Don't treat it like a text string!
 *
 * Returns:	FEND, data frame command, escaped contents, FEND.
 *
 *-----------------------------------------------------------------*/

func kiss_encapsulate(body []byte) []byte {
	var kiss = make([]byte, 0, len(body)+3)

	kiss = append(kiss, FEND)
	kiss = append(kiss, KISS_CMD_DATA_FRAME)

	for _, b := range body {
		switch b {
		case FEND:
			kiss = append(kiss, FESC, TFEND)
		case FESC:
			kiss = append(kiss, FESC, TFESC)
		default:
			kiss = append(kiss, b)
		}
	}

	kiss = append(kiss, FEND)
	return kiss
}

/*-------------------------------------------------------------------
 *
 * Name:        kiss_decoder
 *
 * Purpose:     Reassemble a KISS frame from a stream of bytes.
 *
 * Description:	Bytes are pushed in one at a time as they arrive from
 *		the TNC.  Leading noise, repeated FENDs, and non-data
 *		commands are tolerated by dropping back to the idle or
 *		expect-command states.
 *
 *-----------------------------------------------------------------*/

type kiss_decoder struct {
	state kiss_decode_state
	frame []byte
}

// Feed one byte into the decoder.
// Returns a completed frame, or nil if more bytes are needed.
func (d *kiss_decoder) push_byte(b byte) []byte {
	switch d.state {

	case KS_IDLE:
		if b == FEND {
			d.frame = nil
			d.state = KS_EXPECT_CMD
		} else {
			kiss_log.Errorf("KISS byte received out of frame: 0x%02x", b)
		}

	case KS_EXPECT_CMD:
		if b == FEND {
			// Repeated delimiter.  Keep waiting for the command.
		} else if b&0x0F == KISS_CMD_DATA_FRAME {
			d.state = KS_IN_FRAME
		} else {
			kiss_log.Errorf("invalid KISS command: 0x%02x", b)
			d.state = KS_IDLE
		}

	case KS_IN_FRAME:
		switch b {
		case FEND:
			if len(d.frame) > 0 {
				var frame = d.frame
				d.frame = nil
				d.state = KS_IDLE
				return frame
			}
			// Stray or repeated delimiter before any contents.
			d.state = KS_EXPECT_CMD
		case FESC:
			d.state = KS_IN_ESCAPE
		default:
			d.frame = append(d.frame, b)
		}

	case KS_IN_ESCAPE:
		switch b {
		case TFEND:
			d.frame = append(d.frame, FEND)
			d.state = KS_IN_FRAME
		case TFESC:
			d.frame = append(d.frame, FESC)
			d.state = KS_IN_FRAME
		default:
			kiss_log.Errorf("invalid escape sequence: 0x%02x", b)
			d.frame = nil
			d.state = KS_IDLE
		}
	}

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:        kiss_read_frame
 *
 * Purpose:     Read one KISS frame from the TNC socket.
 *
 * Inputs:	conn		- TCP connection to the TNC.
 *
 *		timeout_ms	- Give up after this long.
 *				  0 means wait indefinitely.
 *
 * Returns:	The unwrapped frame contents, or nil on timeout.
 *
 * Errors:	A socket failure is fatal.  The TNC went away and
 *		there is nothing sensible to do without it.
 *
 *-----------------------------------------------------------------*/

func kiss_read_frame(conn net.Conn, timeout_ms uint32) []byte {
	var decoder kiss_decoder
	var deadline time.Time
	if timeout_ms != 0 {
		deadline = time.Now().Add(time.Duration(timeout_ms) * time.Millisecond)
	}

	var buf [1]byte
	for {
		if !deadline.IsZero() && time.Now().After(deadline) {
			return nil
		}

		// Poll at millisecond granularity so the overall deadline
		// is honored even when the TNC is quiet.
		if err := conn.SetReadDeadline(time.Now().Add(time.Millisecond)); err != nil {
			kiss_log.Fatalf("failed to set read deadline: %s", err)
		}

		var n, err = conn.Read(buf[:])
		if err != nil {
			if net_err, ok := err.(net.Error); ok && net_err.Timeout() {
				continue
			}
			kiss_log.Fatalf("failed to read from TNC socket: %s", err)
		}

		if n == 1 {
			if frame := decoder.push_byte(buf[0]); frame != nil {
				return frame
			}
		}
	}
}
