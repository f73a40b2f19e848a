// Package coordinator implements CacheCoordinator (spec §4.6): local
// master/slave IPC so multiple viewer processes can share one on-disk
// persistent cache directory without corrupting index/shard files.
package coordinator

import (
	"encoding/binary"
	"fmt"
	"io"

	"gitlab.com/tinyland/lab/rfbcache/persist"
)

// MessageType enumerates the coordinator wire protocol's message kinds
// (spec §4.6). All messages are length-prefixed in network byte order.
type MessageType uint8

const (
	MsgHello MessageType = iota + 1
	MsgWelcome
	MsgWriteReq
	MsgWriteAck
	MsgWriteNack
	MsgIndexUpdate
	MsgPing
	MsgPong
	MsgSlaveExit
	MsgQueryIndex
	MsgQueryResp
	MsgMasterExit
)

const protocolVersion uint32 = 1

// maxMessageBytes bounds a single message's length prefix so a malformed
// or malicious peer cannot force an unbounded allocation.
const maxMessageBytes = 128 * 1024 * 1024

// Message is one frame on the coordinator socket: a type tag plus an
// opaque payload whose encoding depends on the type.
type Message struct {
	Type    MessageType
	Payload []byte
}

// WriteMessage writes msg to w as a 4-byte big-endian length prefix
// (covering type byte + payload) followed by the type byte and payload.
func WriteMessage(w io.Writer, msg Message) error {
	frame := make([]byte, 4+1+len(msg.Payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(1+len(msg.Payload)))
	frame[4] = byte(msg.Type)
	copy(frame[5:], msg.Payload)
	_, err := w.Write(frame)
	return err
}

// ReadMessage reads one length-prefixed frame from r.
func ReadMessage(r io.Reader) (Message, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return Message{}, err
	}
	length := binary.BigEndian.Uint32(lenBuf[:])
	if length == 0 || length > maxMessageBytes {
		return Message{}, fmt.Errorf("coordinator: invalid frame length %d", length)
	}
	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return Message{}, err
	}
	return Message{Type: MessageType(body[0]), Payload: body[1:]}, nil
}

// --- payload encodings ---

func encodeHello(pid uint32) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint32(buf[0:4], protocolVersion)
	binary.BigEndian.PutUint32(buf[4:8], pid)
	return buf
}

func decodeHello(buf []byte) (version, pid uint32, err error) {
	if len(buf) != 8 {
		return 0, 0, fmt.Errorf("coordinator: malformed HELLO")
	}
	return binary.BigEndian.Uint32(buf[0:4]), binary.BigEndian.Uint32(buf[4:8]), nil
}

func encodeWelcome(currentShardID uint32, entries []persist.IndexEntry) []byte {
	buf := make([]byte, 8, 8+len(entries)*64)
	binary.BigEndian.PutUint32(buf[0:4], currentShardID)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(entries)))
	for _, e := range entries {
		buf = append(buf, persist.EncodeEntry(e)...)
	}
	return buf
}

func decodeWelcome(buf []byte) (currentShardID uint32, entries []persist.IndexEntry, err error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("coordinator: malformed WELCOME")
	}
	currentShardID = binary.BigEndian.Uint32(buf[0:4])
	count := binary.BigEndian.Uint32(buf[4:8])
	entries, err = decodeEntryTable(buf[8:], count)
	return currentShardID, entries, err
}

func decodeEntryTable(buf []byte, count uint32) ([]persist.IndexEntry, error) {
	const recSize = 64
	entries := make([]persist.IndexEntry, 0, count)
	offset := 0
	for i := uint32(0); i < count; i++ {
		end := offset + recSize
		if end > len(buf) {
			return nil, fmt.Errorf("coordinator: truncated index entry table at record %d", i)
		}
		e, err := persist.DecodeEntry(buf[offset:end])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
		offset = end
	}
	return entries, nil
}

// encodeWriteReq carries an entry whose ShardID/PayloadOffset are not yet
// allocated, plus the raw payload bytes to append.
func encodeWriteReq(e persist.IndexEntry, payload []byte) []byte {
	buf := make([]byte, 0, 64+4+len(payload))
	buf = append(buf, persist.EncodeEntry(e)...)
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(payload)))
	buf = append(buf, lenBuf[:]...)
	buf = append(buf, payload...)
	return buf
}

func decodeWriteReq(buf []byte) (e persist.IndexEntry, payload []byte, err error) {
	if len(buf) < 64+4 {
		return persist.IndexEntry{}, nil, fmt.Errorf("coordinator: malformed WRITE_REQ")
	}
	e, err = persist.DecodeEntry(buf[0:64])
	if err != nil {
		return persist.IndexEntry{}, nil, err
	}
	payloadLen := binary.BigEndian.Uint32(buf[64:68])
	if uint32(len(buf)-68) != payloadLen {
		return persist.IndexEntry{}, nil, fmt.Errorf("coordinator: WRITE_REQ payload length mismatch")
	}
	return e, buf[68:], nil
}

func encodeWriteAck(e persist.IndexEntry) []byte { return persist.EncodeEntry(e) }

func decodeWriteAck(buf []byte) (persist.IndexEntry, error) { return persist.DecodeEntry(buf) }

func encodeWriteNack(reason string) []byte { return []byte(reason) }

func decodeWriteNack(buf []byte) string { return string(buf) }

func encodeIndexUpdate(sequence uint32, entries []persist.IndexEntry) []byte {
	buf := make([]byte, 8, 8+len(entries)*64)
	binary.BigEndian.PutUint32(buf[0:4], sequence)
	binary.BigEndian.PutUint32(buf[4:8], uint32(len(entries)))
	for _, e := range entries {
		buf = append(buf, persist.EncodeEntry(e)...)
	}
	return buf
}

func decodeIndexUpdate(buf []byte) (sequence uint32, entries []persist.IndexEntry, err error) {
	if len(buf) < 8 {
		return 0, nil, fmt.Errorf("coordinator: malformed INDEX_UPDATE")
	}
	sequence = binary.BigEndian.Uint32(buf[0:4])
	count := binary.BigEndian.Uint32(buf[4:8])
	entries, err = decodeEntryTable(buf[8:], count)
	return sequence, entries, err
}

func encodeQueryIndex(hash [16]byte) []byte { return hash[:] }

func decodeQueryIndex(buf []byte) (hash [16]byte, err error) {
	if len(buf) != 16 {
		return hash, fmt.Errorf("coordinator: malformed QUERY_INDEX")
	}
	copy(hash[:], buf)
	return hash, nil
}

func encodeQueryResp(found bool, e persist.IndexEntry) []byte {
	buf := make([]byte, 1, 65)
	if found {
		buf[0] = 1
		buf = append(buf, persist.EncodeEntry(e)...)
	}
	return buf
}

func decodeQueryResp(buf []byte) (found bool, e persist.IndexEntry, err error) {
	if len(buf) == 0 {
		return false, persist.IndexEntry{}, fmt.Errorf("coordinator: malformed QUERY_RESP")
	}
	found = buf[0] == 1
	if !found {
		return false, persist.IndexEntry{}, nil
	}
	e, err = persist.DecodeEntry(buf[1:])
	return found, e, err
}
