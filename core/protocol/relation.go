package protocol

import "fmt"

const (
	// RelationHeaderSize is the encoded size of a RelationHeader.
	RelationHeaderSize = 1

	MaxRelationID = 0x7F
	MaxAggregate  = 0x01
)

// RelationHeader identifies a relation and carries the aggregate flag.
// On the wire it is one byte: relation id in the high 7 bits, flag in the low bit.
type RelationHeader struct {
	RelationID uint8
	Aggregate  uint8
}

// EncodeRelation packs relationID and aggregate into a single byte.
func EncodeRelation(relationID, aggregate uint8) (byte, error) {
	if relationID > MaxRelationID {
		return 0, &RangeError{Field: "relationId", Value: uint(relationID), Max: MaxRelationID}
	}
	if aggregate > MaxAggregate {
		return 0, &RangeError{Field: "aggregate", Value: uint(aggregate), Max: MaxAggregate}
	}
	return relationID<<1 | aggregate, nil
}

// DecodeRelation unpacks a relation header byte. Every byte value is valid.
func DecodeRelation(b byte) RelationHeader {
	return RelationHeader{RelationID: b >> 1, Aggregate: b & MaxAggregate}
}

func (h RelationHeader) Encode() (byte, error) {
	return EncodeRelation(h.RelationID, h.Aggregate)
}

func (h RelationHeader) String() string {
	return fmt.Sprintf("relationId=%d aggregate=%d", h.RelationID, h.Aggregate)
}
