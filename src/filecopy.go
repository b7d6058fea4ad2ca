package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Main program for the APRS file copy utility.
 *
 * Description:	Copies files between stations using APRS for
 *		backhaul.  The radio side is a KISS TNC attached by
 *		TCP (such as Dire Wolf, typically on port 8001).
 *		Receiving can alternatively use the APRS-IS internet
 *		service.
 *
 * Usage:	aprsfc --callsign N0CALL-7 --send picture.jpg
 *		aprsfc --callsign N0CALL-7 --receive
 *		aprsfc --callsign N0CALL-7 --receive --use_aprs_is
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
)

var filecopy_log = log.WithPrefix("APRSFileCopy")

/*------------------------------------------------------------------
 *
 * Name: 	FileCopyMain
 *
 * Purpose:   	Parse the command line and run one send or receive
 *		session.
 *
 * Returns:	Process exit code.  0 for success.
 *
 *---------------------------------------------------------------*/

func FileCopyMain() int {
	/*
	 * Extract command line args.
	 */
	var _send = pflag.StringP("send", "s", "", "The file to send.")
	var _receive = pflag.BoolP("receive", "r", false, "Set to true to receive files sent by the network.")
	var _callsign = pflag.StringP("callsign", "c", "", "Set to the callsign of this station.")
	var _peerCallsign = pflag.StringP("peer_callsign", "p", "", "Set to the callsign of the other station. If this is left empty, files are sent to all stations (no ACKs) and all files are received (broadcast mode).")
	var _useAPRSIS = pflag.Bool("use_aprs_is", false, "Set to true to use the APRS-IS network to receive files.")
	var _maxFileChunkSize = pflag.Int("max_file_chunk_size", 0, "Largest file chunk in bytes. 0 sends the file as a single chunk.")
	var _transmitIntervalS = pflag.Float64("aprs_transmit_interval_s", 20.0, "Seconds between transmissions.")
	var _maxPacketSize = pflag.Int("aprs_max_packet_size", 100, "Largest transport chunk in bytes.")
	var _retransmitCount = pflag.Int("aprs_retransmit_count", 1, "Number of complete transmission passes.")
	var _tncHostname = pflag.String("tnc_hostname", "localhost", "The hostname of the TNC to connect to.")
	var _tncPort = pflag.Int("tnc_port", 8001, "The port of the TNC to connect to.")
	var _aprsISHostname = pflag.String("aprs_is_hostname", "rotate.aprs2.net", "The hostname of the APRS-IS service to connect to.")
	var _aprsISPort = pflag.Int("aprs_is_port", 14580, "The port of the APRS-IS service to connect to.")
	var _digipeaters = pflag.String("digipeaters", "", "Comma separated digipeater path, e.g. WIDE1-1,WIDE2-1.")
	var _configFile = pflag.String("config", "", "YAML file with default values for these flags.")
	var _packetLog = pflag.String("packet_log", "", "Write received transfer activity to this CSV file, or daily files in this directory.")
	var help = pflag.Bool("help", false, "Display help text.")

	pflag.Usage = func() {
		fmt.Fprintf(os.Stderr, "%s - A file copy utility that uses APRS for backhaul.\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "\n")
		fmt.Fprintf(os.Stderr, "Files are fragmented into chunks small enough to ride in APRS\n")
		fmt.Fprintf(os.Stderr, "information fields and broadcast as AX.25 UI frames.\n")
		fmt.Fprintf(os.Stderr, "\n")
		pflag.PrintDefaults()
	}

	pflag.Parse()

	if *help {
		pflag.Usage()
		return 0
	}

	/*
	 * Apply configuration file defaults for flags not given on the
	 * command line.
	 */
	if len(*_configFile) > 0 {
		var config, err = load_file_copy_config(*_configFile)
		if err != nil {
			filecopy_log.Errorf("%s", err)
			return 1
		}

		if !pflag.CommandLine.Changed("callsign") && config.Callsign != "" {
			*_callsign = config.Callsign
		}
		if !pflag.CommandLine.Changed("peer_callsign") && config.PeerCallsign != "" {
			*_peerCallsign = config.PeerCallsign
		}
		if !pflag.CommandLine.Changed("tnc_hostname") && config.TNCHostname != "" {
			*_tncHostname = config.TNCHostname
		}
		if !pflag.CommandLine.Changed("tnc_port") && config.TNCPort != 0 {
			*_tncPort = config.TNCPort
		}
		if !pflag.CommandLine.Changed("aprs_is_hostname") && config.APRSISHostname != "" {
			*_aprsISHostname = config.APRSISHostname
		}
		if !pflag.CommandLine.Changed("aprs_is_port") && config.APRSISPort != 0 {
			*_aprsISPort = config.APRSISPort
		}
		if !pflag.CommandLine.Changed("max_file_chunk_size") && config.MaxFileChunkSize != 0 {
			*_maxFileChunkSize = config.MaxFileChunkSize
		}
		if !pflag.CommandLine.Changed("aprs_transmit_interval_s") && config.TransmitIntervalS != 0 {
			*_transmitIntervalS = config.TransmitIntervalS
		}
		if !pflag.CommandLine.Changed("aprs_max_packet_size") && config.MaxPacketSize != 0 {
			*_maxPacketSize = config.MaxPacketSize
		}
		if !pflag.CommandLine.Changed("aprs_retransmit_count") && config.RetransmitCount != 0 {
			*_retransmitCount = config.RetransmitCount
		}
		if !pflag.CommandLine.Changed("digipeaters") && len(config.Digipeaters) > 0 {
			*_digipeaters = strings.Join(config.Digipeaters, ",")
		}
		if !pflag.CommandLine.Changed("packet_log") && config.PacketLog != "" {
			*_packetLog = config.PacketLog
		}
	}

	/*
	 * Validate arguments.
	 */
	var callsign, callsign_err = callsign_from_string(*_callsign)
	if callsign_err != nil {
		filecopy_log.Errorf("%s", callsign_err)
		return 1
	}
	if callsign.IsEmpty() {
		filecopy_log.Errorf("a callsign must be specified")
		pflag.Usage()
		return 1
	}

	var peer_callsign, peer_err = callsign_from_string(*_peerCallsign)
	if peer_err != nil {
		filecopy_log.Errorf("%s", peer_err)
		return 1
	}

	var sending = len(*_send) > 0
	if sending == *_receive {
		filecopy_log.Errorf("must specify whether to send or receive")
		pflag.Usage()
		return 1
	}

	if sending && *_useAPRSIS {
		filecopy_log.Errorf("unable to use APRS-IS to send files")
		return 1
	}

	if *_maxPacketSize < 1 {
		filecopy_log.Errorf("aprs_max_packet_size must be at least 1")
		return 1
	}

	if *_retransmitCount < 1 {
		filecopy_log.Errorf("aprs_retransmit_count must be at least 1")
		return 1
	}

	var digipeaters []Callsign
	if len(*_digipeaters) > 0 {
		for _, field := range strings.Split(*_digipeaters, ",") {
			var digipeater, err = callsign_from_string(strings.TrimSpace(field))
			if err != nil {
				filecopy_log.Errorf("%s", err)
				return 1
			}
			digipeaters = append(digipeaters, digipeater)
		}

		if len(digipeaters) > AX25_MAX_REPEATERS {
			filecopy_log.Errorf("too many digipeaters specified")
			return 1
		}
	}

	/*
	 * Set up the APRS interface.
	 */
	var iface APRSInterface
	if *_useAPRSIS {
		iface = new_internet_aprs_interface(callsign, *_aprsISHostname, *_aprsISPort)
	} else {
		iface = new_tnc_aprs_interface(*_tncHostname, *_tncPort)
	}

	var aprs = new_aprs_packet_interface(APRSConfig{
		MaxPacketSize:     *_maxPacketSize,
		TransmitIntervalS: *_transmitIntervalS,
		RetransmitCount:   *_retransmitCount,
	}, iface)

	/*
	 * Perform the file transfer operation.
	 */
	if sending {
		var sender = new_file_sender(aprs)
		if err := sender.send_file(*_send, *_maxFileChunkSize, callsign, peer_callsign, digipeaters); err != nil {
			filecopy_log.Errorf("%s", err)
			return 1
		}

		return 0
	}

	var activity = packet_log_init(*_packetLog)
	defer activity.term()

	var receiver = new_file_receiver(aprs, activity)
	if err := receiver.receive(callsign, peer_callsign); err != nil {
		filecopy_log.Errorf("%s", err)
		return 1
	}

	return 0
}
