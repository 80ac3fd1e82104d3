package protocol

import (
	"encoding/binary"
	"fmt"
)

// EntryRecordSize is the encoded size of an EntryRecord.
const EntryRecordSize = 12

// EntryRecord is one row carried after a RelationHeader.
// All fields are big-endian signed 32-bit integers.
type EntryRecord struct {
	EntryID    int32
	SecondAttr int32
	ThirdAttr  int32
}

// EncodeEntry serializes the three fields in network byte order.
func EncodeEntry(entryID, secondAttr, thirdAttr int32) [EntryRecordSize]byte {
	var buff [EntryRecordSize]byte
	binary.BigEndian.PutUint32(buff[0:4], uint32(entryID))
	binary.BigEndian.PutUint32(buff[4:8], uint32(secondAttr))
	binary.BigEndian.PutUint32(buff[8:12], uint32(thirdAttr))
	return buff
}

// DecodeEntry reads an EntryRecord from the first 12 bytes of buff.
func DecodeEntry(buff []byte) (EntryRecord, error) {
	if len(buff) < EntryRecordSize {
		return EntryRecord{}, &TruncatedInputError{Want: EntryRecordSize, Have: len(buff)}
	}
	return EntryRecord{
		EntryID:    int32(binary.BigEndian.Uint32(buff[0:4])),
		SecondAttr: int32(binary.BigEndian.Uint32(buff[4:8])),
		ThirdAttr:  int32(binary.BigEndian.Uint32(buff[8:12])),
	}, nil
}

func (e EntryRecord) Encode() [EntryRecordSize]byte {
	return EncodeEntry(e.EntryID, e.SecondAttr, e.ThirdAttr)
}

func (e EntryRecord) String() string {
	return fmt.Sprintf("entryId=%d secondAttr=%d thirdAttr=%d", e.EntryID, e.SecondAttr, e.ThirdAttr)
}
