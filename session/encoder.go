package session

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is the first byte of every encoded session.
const CurrentSchemaVersion uint8 = 1

// ErrCorrupt is returned when a stored blob cannot be decoded.
var ErrCorrupt = errors.New("session: corrupt record")

const fixedSize = 1 + 8 + 8 + 8 + 1

// Encode serializes s as:
//
//	version(1) | userID(8) | createdAt(8) | expiresAt(8) | uaLen(1) | ua
func Encode(s *Session) ([]byte, error) {
	if s == nil {
		return nil, errors.New("session: nil session")
	}
	ua := s.UserAgent
	if len(ua) > 255 {
		ua = ua[:255]
	}

	buf := make([]byte, fixedSize, fixedSize+len(ua))
	buf[0] = CurrentSchemaVersion
	binary.BigEndian.PutUint64(buf[1:9], uint64(s.UserID))
	binary.BigEndian.PutUint64(buf[9:17], uint64(s.CreatedAt))
	binary.BigEndian.PutUint64(buf[17:25], uint64(s.ExpiresAt))
	buf[25] = byte(len(ua))
	return append(buf, ua...), nil
}

// Decode parses a blob produced by Encode. SessionID is left for the caller.
func Decode(data []byte) (*Session, error) {
	if len(data) == 0 {
		return nil, ErrCorrupt
	}
	if data[0] != CurrentSchemaVersion {
		return nil, fmt.Errorf("%w: unsupported schema version %d", ErrCorrupt, data[0])
	}
	if len(data) < fixedSize {
		return nil, fmt.Errorf("%w: short record", ErrCorrupt)
	}

	uaLen := int(data[25])
	if len(data) != fixedSize+uaLen {
		return nil, fmt.Errorf("%w: length mismatch", ErrCorrupt)
	}

	return &Session{
		SchemaVersion: data[0],
		UserID:        int64(binary.BigEndian.Uint64(data[1:9])),
		CreatedAt:     int64(binary.BigEndian.Uint64(data[9:17])),
		ExpiresAt:     int64(binary.BigEndian.Uint64(data[17:25])),
		UserAgent:     string(data[fixedSize:]),
	}, nil
}
