package aprsfc

/*------------------------------------------------------------------
 *
 * Purpose:	Save received transfer activity to a log file.
 *
 * Description:	Rather than saving the raw, sometimes rather cryptic
 *		and unreadable, frames, write separated properties
 *		into CSV format for easy reading and later processing.
 *
 *		There are two alternatives here.
 *
 *		Specify a file path for a single log file, or a
 *		directory for automatic daily names inside it.
 *
 *---------------------------------------------------------------*/

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/lestrrat-go/strftime"
)

var packet_log_log = log.WithPrefix("PacketLog")

type packet_activity_log struct {
	daily_names bool
	path        string /* Log file name, or just the directory. */
	fp          *os.File
	open_fname  string /* Name of the currently open daily file. */
}

/*------------------------------------------------------------------
 *
 * Name:	packet_log_init
 *
 * Purpose:	Initialization at start of application.
 *
 * Inputs:	path	- Log file name or a directory for daily
 *			  names.  Empty string disables the feature
 *			  and yields a nil log, which all the log_...
 *			  methods tolerate.
 *
 *---------------------------------------------------------------*/

func packet_log_init(path string) *packet_activity_log {
	if len(path) == 0 {
		return nil
	}

	var l = packet_activity_log{path: path}

	var stat, err = os.Stat(path)
	if err == nil && stat.IsDir() {
		// Automatic daily file names inside the directory.
		l.daily_names = true
		return &l
	}

	l.fp, err = os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		packet_log_log.Errorf("can't open log file '%s' for write: %s", path, err)
		return nil
	}

	return &l
}

func (l *packet_activity_log) log_header(header *FileTransferHeader) {
	if l == nil {
		return
	}

	l.write_record("header",
		strconv.FormatUint(uint64(header.ID), 10),
		"",
		header.Filename,
		strconv.FormatUint(header.Size, 10))
}

func (l *packet_activity_log) log_chunk(chunk *FileTransferChunk) {
	if l == nil {
		return
	}

	l.write_record("chunk",
		strconv.FormatUint(uint64(chunk.ID), 10),
		strconv.FormatUint(uint64(chunk.ChunkID), 10),
		"",
		strconv.Itoa(len(chunk.Chunk)))
}

func (l *packet_activity_log) log_complete(header *FileTransferHeader) {
	if l == nil {
		return
	}

	l.write_record("complete",
		strconv.FormatUint(uint64(header.ID), 10),
		"",
		header.Filename,
		strconv.FormatUint(header.Size, 10))
}

func (l *packet_activity_log) write_record(event string, transfer_id string, chunk_id string, filename string, size string) {
	var now = time.Now()

	if l.daily_names {
		// Generate the file name from the date.
		// Only on a date change do we close the current file and
		// open a new one.
		var fname, err = strftime.Format("%Y-%m-%d.log", now)
		if err != nil {
			packet_log_log.Errorf("can't format log file name: %s", err)
			return
		}

		if l.fp != nil && fname != l.open_fname {
			l.fp.Close()
			l.fp = nil
			l.open_fname = ""
		}

		if l.fp == nil {
			var full = filepath.Join(l.path, fname)
			l.fp, err = os.OpenFile(full, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
			if err != nil {
				packet_log_log.Errorf("can't open log file '%s' for write: %s", full, err)
				return
			}
			l.open_fname = fname
		}
	}

	if l.fp == nil {
		return
	}

	var w = csv.NewWriter(l.fp)
	w.Write([]string{now.Format(time.RFC3339), event, transfer_id, chunk_id, filename, size})
	w.Flush()
}

func (l *packet_activity_log) term() {
	if l == nil || l.fp == nil {
		return
	}

	l.fp.Close()
	l.fp = nil
}
