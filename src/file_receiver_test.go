package aprsfc

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func test_header(id uint32, filename string, size uint64) *FileTransferHeader {
	return &FileTransferHeader{ID: id, Filename: filename, Size: size, has_size: true}
}

func test_chdir(t *testing.T, dir string) {
	t.Helper()

	var orig_wd, wd_err = os.Getwd()
	require.NoError(t, wd_err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(orig_wd) })
}

func Test_receive_single_chunk_file(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(1, "hi.txt", 5))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 1, ChunkID: 1, Chunk: []byte("HELLO")})

	var contents, err = os.ReadFile("hi.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("HELLO"), contents)
}

func Test_receive_chunks_out_of_order(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(3, "data.bin", 6))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 3, ChunkID: 3, Chunk: []byte("ef")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 3, ChunkID: 1, Chunk: []byte("ab")})

	// Chunk 3 is beyond the contiguous prefix; only "ab" may be on disk.
	var contents, err = os.ReadFile("data.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("ab"), contents)

	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 3, ChunkID: 2, Chunk: []byte("cd")})

	contents, err = os.ReadFile("data.bin")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcdef"), contents)
}

// Nothing may hit the disk while the header is unknown.
func Test_receive_chunks_before_header(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 9, ChunkID: 1, Chunk: []byte("HEL")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 9, ChunkID: 2, Chunk: []byte("LO")})

	var _, err = os.ReadFile("late.txt")
	assert.Error(t, err)

	receiver.handle_transfer_header(test_header(9, "late.txt", 5))

	var contents, read_err = os.ReadFile("late.txt")
	require.NoError(t, read_err)
	assert.Equal(t, []byte("HELLO"), contents)
}

func Test_receive_duplicate_chunk_ignored(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(4, "dup.txt", 4))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 4, ChunkID: 1, Chunk: []byte("ab")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 4, ChunkID: 1, Chunk: []byte("XY")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 4, ChunkID: 2, Chunk: []byte("cd")})

	var contents, err = os.ReadFile("dup.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), contents)
}

func Test_receive_interleaved_transfers(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(1, "one.txt", 3))
	receiver.handle_transfer_header(test_header(2, "two.txt", 3))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 2, ChunkID: 1, Chunk: []byte("two")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 1, ChunkID: 1, Chunk: []byte("one")})

	var contents, err = os.ReadFile("one.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("one"), contents)

	contents, err = os.ReadFile("two.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), contents)
}

// A later header retransmission must not disturb accumulated chunks.
func Test_receive_header_retransmission(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(5, "r.txt", 4))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 5, ChunkID: 1, Chunk: []byte("ab")})
	receiver.handle_transfer_header(test_header(5, "r.txt", 4))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 5, ChunkID: 2, Chunk: []byte("cd")})

	var contents, err = os.ReadFile("r.txt")
	require.NoError(t, err)
	assert.Equal(t, []byte("abcd"), contents)
	require.Len(t, receiver.transfers, 1)
}

func Test_receive_rejects_missing_fields(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)

	receiver.handle_transfer_header(&FileTransferHeader{Filename: "x", Size: 1, has_size: true})
	receiver.handle_transfer_header(&FileTransferHeader{ID: 1, Size: 1, has_size: true})
	receiver.handle_transfer_header(&FileTransferHeader{ID: 1, Filename: "x"})
	assert.Empty(t, receiver.transfers)

	receiver.handle_transfer_chunk(&FileTransferChunk{ChunkID: 1, Chunk: []byte("x")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 1, Chunk: []byte("x")})
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 1, ChunkID: 1})
	assert.Empty(t, receiver.transfers)
}

func Test_sanitize_filename(t *testing.T) {
	var name, err = sanitize_filename("hi.txt")
	assert.NoError(t, err)
	assert.Equal(t, "hi.txt", name)

	_, err = sanitize_filename("../../etc/passwd")
	assert.Error(t, err)

	_, err = sanitize_filename("/etc/passwd")
	assert.Error(t, err)

	_, err = sanitize_filename("dir\\file")
	assert.Error(t, err)

	_, err = sanitize_filename(".bashrc")
	assert.Error(t, err)

	_, err = sanitize_filename("..")
	assert.Error(t, err)
}

// A hostile filename never produces a file outside the working directory.
func Test_receive_hostile_filename(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(6, "../escape.txt", 2))
	receiver.handle_transfer_chunk(&FileTransferChunk{ID: 6, ChunkID: 1, Chunk: []byte("no")})

	var _, err = os.Stat("../escape.txt")
	assert.Error(t, err)
}

func Test_receive_evicts_stale_transfers(t *testing.T) {
	test_chdir(t, t.TempDir())

	var receiver = new_file_receiver(nil, nil)
	receiver.handle_transfer_header(test_header(7, "stale.txt", 10))
	require.Len(t, receiver.transfers, 1)

	receiver.evict_stale(dtime_now_us())
	assert.Len(t, receiver.transfers, 1)

	receiver.evict_stale(dtime_now_us() + TRANSFER_EVICT_AGE_US + 1)
	assert.Empty(t, receiver.transfers)
}

func Test_format_non_printables(t *testing.T) {
	assert.Equal(t, "hi.txt", format_non_printables("hi.txt"))
	assert.Equal(t, "bad\\x00name\\x1b", format_non_printables("bad\x00name\x1b"))
}
