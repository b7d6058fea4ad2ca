package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	APRS transport using a KISS TNC attached by TCP.
 *
 * Description:	Dire Wolf and most hardware TNCs accept KISS over a
 *		network socket, typically port 8001.  Outbound frames
 *		are AX.25 encoded and KISS encapsulated; inbound
 *		KISS frames are unwrapped and the AX.25 contents
 *		taken apart.
 *
 *---------------------------------------------------------------*/

import (
	"net"
	"strconv"

	"github.com/charmbracelet/log"
)

var tnc_log = log.WithPrefix("TNCAPRSInterface")

type TNCAPRSInterface struct {
	conn net.Conn
}

/*-------------------------------------------------------------------
 *
 * Name:        new_tnc_aprs_interface
 *
 * Purpose:     Open the connection to the TNC.
 *
 * Inputs:	hostname	- DNS host name or IPv4 address.
 *				  Often "localhost".
 *
 *		port		- TCP port number.  Typically 8001.
 *
 * Errors:	Failure to connect is fatal.  Without the TNC there
 *		is no radio.
 *
 *-----------------------------------------------------------------*/

func new_tnc_aprs_interface(hostname string, port int) *TNCAPRSInterface {
	var conn, err = net.Dial("tcp", net.JoinHostPort(hostname, strconv.Itoa(port)))
	if err != nil {
		tnc_log.Fatalf("failed to open TNC socket: %s", err)
	}

	tnc_log.Infof("connected to TNC at %s:%d", hostname, port)
	return &TNCAPRSInterface{conn: conn}
}

func (t *TNCAPRSInterface) Close() {
	t.conn.Close()
}

/*-------------------------------------------------------------------
 *
 * Name:        SendFrame
 *
 * Purpose:     Transmit one UI frame through the TNC.
 *
 * Inputs:	info		- Information part.
 *
 *		source		- Our station callsign.
 *
 *		destination	- Destination address.  When empty the
 *				  application identity APZ200 is used.
 *
 *		digipeaters	- Relay path, up to 8 entries.
 *
 *-----------------------------------------------------------------*/

func (t *TNCAPRSInterface) SendFrame(info []byte, source Callsign, destination Callsign, digipeaters []Callsign) error {
	if destination.IsEmpty() {
		destination = Callsign{Call: APP_CALLSIGN}
	}

	var frame = ax25_encode_ui_frame(destination, source, digipeaters, info)
	var kiss_frame = kiss_encapsulate(frame)

	if _, err := t.conn.Write(kiss_frame); err != nil {
		tnc_log.Fatalf("failed to send frame: %s", err)
	}

	return nil
}

/*-------------------------------------------------------------------
 *
 * Name:        ReceiveFrame
 *
 * Purpose:     Receive one UI frame from the TNC.
 *
 * Inputs:	timeout_ms	- Give up after this long.
 *				  0 means wait indefinitely.
 *
 * Returns:	The decoded frame, or nil on timeout.  A frame whose
 *		AX.25 contents do not decode is logged, dropped, and
 *		also reported as nil so the caller just tries again.
 *
 *-----------------------------------------------------------------*/

func (t *TNCAPRSInterface) ReceiveFrame(timeout_ms uint32) (*ReceivedFrame, error) {
	var frame = kiss_read_frame(t.conn, timeout_ms)
	if frame == nil {
		return nil, nil
	}

	var decoded, err = ax25_decode_ui_frame(frame)
	if err != nil {
		tnc_log.Errorf("dropping malformed frame: %s", err)
		return nil, nil
	}

	tnc_log.Debugf("destination %s", decoded.destination)
	tnc_log.Debugf("source %s", decoded.source)
	for i, digipeater := range decoded.digipeaters {
		tnc_log.Debugf("digipeater %d %s", i, digipeater)
	}

	return &ReceivedFrame{
		Source:      decoded.source,
		Destination: decoded.destination,
		Digipeaters: decoded.digipeaters,
		Info:        decoded.info,
	}, nil
}
