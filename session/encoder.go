package session

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"time"

	"github.com/MrEthical07/goFedAuth/refresh"
)

const recordFormatVersionCurrent = 1

const maxEmailLen = 1<<16 - 1

// Encode serializes the stored part of a refresh record. The token itself is
// not stored; records are keyed by its hash.
//
// Layout (big endian): version(1) | userID(8) | expiresAtMillis(8) | emailLen(2) | email.
func Encode(rec refresh.Record) ([]byte, error) {
	if len(rec.Email) > maxEmailLen {
		return nil, errors.New("email too long")
	}

	var buf bytes.Buffer
	buf.Grow(19 + len(rec.Email))
	buf.WriteByte(recordFormatVersionCurrent)

	if err := binary.Write(&buf, binary.BigEndian, rec.UserID); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, rec.ExpiresAt.UnixMilli()); err != nil {
		return nil, err
	}
	if err := binary.Write(&buf, binary.BigEndian, uint16(len(rec.Email))); err != nil {
		return nil, err
	}
	buf.WriteString(rec.Email)

	return buf.Bytes(), nil
}

// Decode parses a blob written by Encode. Token is left empty.
func Decode(data []byte) (*refresh.Record, error) {
	reader := bytes.NewReader(data)

	version, err := reader.ReadByte()
	if err != nil {
		return nil, err
	}
	if version != recordFormatVersionCurrent {
		return nil, errors.New("invalid refresh record version")
	}

	var (
		userID    int64
		expiresMs int64
		emailLen  uint16
	)
	if err := binary.Read(reader, binary.BigEndian, &userID); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &expiresMs); err != nil {
		return nil, err
	}
	if err := binary.Read(reader, binary.BigEndian, &emailLen); err != nil {
		return nil, err
	}
	email := make([]byte, emailLen)
	if _, err := io.ReadFull(reader, email); err != nil {
		return nil, err
	}
	if reader.Len() != 0 {
		return nil, errors.New("trailing bytes in refresh record")
	}

	return &refresh.Record{
		UserID:    userID,
		Email:     string(email),
		ExpiresAt: time.UnixMilli(expiresMs).UTC(),
	}, nil
}
