package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:   	Optional configuration file.
 *
 * Description:	A small YAML file can hold station defaults so they
 *		don't have to be repeated on every command line.
 *		Command line flags always win over file values.
 *
 *		Example:
 *
 *			callsign: N0CALL-7
 *			tnc_hostname: localhost
 *			tnc_port: 8001
 *			aprs_transmit_interval_s: 20.0
 *			digipeaters:
 *			  - WIDE1-1
 *			  - WIDE2-1
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type FileCopyConfig struct {
	Callsign          string   `yaml:"callsign"`
	PeerCallsign      string   `yaml:"peer_callsign"`
	TNCHostname       string   `yaml:"tnc_hostname"`
	TNCPort           int      `yaml:"tnc_port"`
	APRSISHostname    string   `yaml:"aprs_is_hostname"`
	APRSISPort        int      `yaml:"aprs_is_port"`
	MaxFileChunkSize  int      `yaml:"max_file_chunk_size"`
	TransmitIntervalS float64  `yaml:"aprs_transmit_interval_s"`
	MaxPacketSize     int      `yaml:"aprs_max_packet_size"`
	RetransmitCount   int      `yaml:"aprs_retransmit_count"`
	Digipeaters       []string `yaml:"digipeaters"`
	PacketLog         string   `yaml:"packet_log"`
}

func load_file_copy_config(path string) (*FileCopyConfig, error) {
	var contents, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
	}

	var config FileCopyConfig
	if err := yaml.Unmarshal(contents, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file '%s': %w", path, err)
	}

	return &config, nil
}
