package wire

import (
	"strconv"
	"strings"

	"github.com/golang/snappy"
	"github.com/pkg/errors"
	"go.mongodb.org/mongo-driver/bson"

	"github.com/ajdavis/mongo-space-time/pcap"
)

// Wire protocol opcodes handled by the decoder.
const (
	opReply      = 1
	opQuery      = 2004
	opCompressed = 2012
	opMsg        = 2013
)

// OP_MSG flag bits.
const flagChecksumPresent = 0x1

// OP_COMPRESSED compressor ids.
const (
	compressorNoop   = 0
	compressorSnappy = 1
)

// A Decompressor expands the payload of an OP_COMPRESSED envelope.
type Decompressor func(compressed []byte) ([]byte, error)

func snappyDecompress(compressed []byte) ([]byte, error) {
	return snappy.Decode(nil, compressed)
}

func noopDecompress(compressed []byte) ([]byte, error) {
	return compressed, nil
}

// Decoder frames and decodes wire messages out of reassembled TCP data.
type Decoder struct {
	decompressors map[uint8]Decompressor
}

func NewDecoder() *Decoder {
	return &Decoder{
		decompressors: map[uint8]Decompressor{
			compressorNoop:   noopDecompress,
			compressorSnappy: snappyDecompress,
		},
	}
}

// RegisterDecompressor installs dec for the given compressor id,
// overwriting any previous registration. Captures have only been observed
// with Snappy so far; this is the hook for the others.
func (d *Decoder) RegisterDecompressor(id uint8, dec Decompressor) {
	d.decompressors[id] = dec
}

// Decode interprets raw as exactly one framed wire message. It returns
// (nil, nil) for opcodes the pipeline does not care about; those are skipped
// silently by the callers.
func (d *Decoder) Decode(raw *pcap.RawMessage) (*MongoMessage, error) {
	srcPort, err := endpointPort(raw.Src)
	if err != nil {
		return nil, err
	}
	dstPort, err := endpointPort(raw.Dst)
	if err != nil {
		return nil, err
	}

	c := newCursor(raw.Data)
	msgLen, err := c.i32()
	if err != nil {
		return nil, errors.Wrap(err, "reading message header")
	}
	requestID, _ := c.i32()
	responseTo, _ := c.i32()
	opCode, err := c.i32()
	if err != nil {
		return nil, errors.Wrap(err, "reading message header")
	}

	msg := &MongoMessage{
		Src:        srcPort,
		Dst:        dstPort,
		RequestID:  requestID,
		ResponseTo: responseTo,
		Start:      raw.Start,
		End:        raw.End,
	}

	switch opCode {
	case opQuery:
		if _, err := c.u32(); err != nil { // flags
			return nil, errors.Wrap(err, "decoding OP_QUERY")
		}
		if _, err := c.cstring(); err != nil { // full collection name
			return nil, errors.Wrap(err, "decoding OP_QUERY")
		}
		if _, err := c.u32(); err != nil { // numberToSkip
			return nil, errors.Wrap(err, "decoding OP_QUERY")
		}
		if _, err := c.u32(); err != nil { // numberToReturn
			return nil, errors.Wrap(err, "decoding OP_QUERY")
		}
		query, err := document(c)
		if err != nil {
			return nil, errors.Wrap(err, "decoding OP_QUERY")
		}
		msg.Body = query

	case opReply:
		if _, err := c.u32(); err != nil { // responseFlags
			return nil, errors.Wrap(err, "decoding OP_REPLY")
		}
		if _, err := c.u64(); err != nil { // cursorID
			return nil, errors.Wrap(err, "decoding OP_REPLY")
		}
		if _, err := c.u32(); err != nil { // startingFrom
			return nil, errors.Wrap(err, "decoding OP_REPLY")
		}
		if _, err := c.u32(); err != nil { // numberReturned
			return nil, errors.Wrap(err, "decoding OP_REPLY")
		}
		reply, err := document(c)
		if err != nil {
			return nil, errors.Wrap(err, "decoding OP_REPLY")
		}
		msg.Body = reply

	case opCompressed:
		if _, err := c.u32(); err != nil { // originalOpcode
			return nil, errors.Wrap(err, "decoding OP_COMPRESSED")
		}
		if _, err := c.u32(); err != nil { // uncompressedSize
			return nil, errors.Wrap(err, "decoding OP_COMPRESSED")
		}
		compressorID, err := c.u8()
		if err != nil {
			return nil, errors.Wrap(err, "decoding OP_COMPRESSED")
		}
		compressed, err := c.remainderOf(0, msgLen)
		if err != nil {
			return nil, errors.Wrap(err, "decoding OP_COMPRESSED")
		}
		decompress, ok := d.decompressors[compressorID]
		if !ok {
			return nil, errors.Errorf("unexpected compressor id %d in message %d", compressorID, requestID)
		}
		payload, err := decompress(compressed)
		if err != nil {
			return nil, errors.Wrapf(err, "decompressing message %d", requestID)
		}
		body, err := decodeMsgBody(payload)
		if err != nil {
			return nil, errors.Wrap(err, "decoding compressed OP_MSG")
		}
		msg.Body = body

	case opMsg:
		payload, err := c.remainderOf(0, msgLen)
		if err != nil {
			return nil, errors.Wrap(err, "decoding OP_MSG")
		}
		body, err := decodeMsgBody(payload)
		if err != nil {
			return nil, errors.Wrap(err, "decoding OP_MSG")
		}
		msg.Body = body

	default:
		// Not a message the event trace cares about.
		return nil, nil
	}

	msg.computeSortKey()
	return msg, nil
}

// decodeMsgBody interprets an OP_MSG payload: flags, then sections until the
// optional trailing checksum. Body sections merge into the accumulated
// document at the top level; document-sequence sections become an ordered
// array under the sequence identifier.
func decodeMsgBody(payload []byte) (bson.D, error) {
	c := newCursor(payload)
	flags, err := c.u32()
	if err != nil {
		return nil, err
	}
	sectionsEnd := len(payload)
	if flags&flagChecksumPresent != 0 {
		sectionsEnd -= 4
	}

	body := bson.D{}
	for c.off < sectionsEnd {
		payloadType, err := c.u8()
		if err != nil {
			return nil, err
		}
		switch payloadType {
		case 0:
			doc, err := document(c)
			if err != nil {
				return nil, err
			}
			body = append(body, doc...)
		case 1:
			sectionStart := c.off
			size, err := c.u32()
			if err != nil {
				return nil, err
			}
			identifier, err := c.cstring()
			if err != nil {
				return nil, err
			}
			docs := bson.A{}
			for c.off < sectionStart+int(size) {
				doc, err := document(c)
				if err != nil {
					return nil, err
				}
				docs = append(docs, doc)
			}
			body = append(body, bson.E{Key: identifier, Value: docs})
		default:
			return nil, errors.Errorf("unknown OP_MSG section type %d", payloadType)
		}
	}

	// The checksum, if present, is not verified.
	return body, nil
}

// document reads one length-prefixed document from c. A document the codec
// rejects (the election timestamp is usually out of range) becomes
// {error: <message>} instead of failing the whole message.
func document(c *cursor) (bson.D, error) {
	start := c.off
	length, err := c.i32()
	if err != nil {
		return nil, err
	}
	if length < 4 {
		return nil, errTruncated
	}
	if _, err := c.take(int(length) - 4); err != nil {
		return nil, err
	}
	var doc bson.D
	if err := bson.Unmarshal(c.data[start:c.off], &doc); err != nil {
		return bson.D{{Key: "error", Value: err.Error()}}, nil
	}
	return doc, nil
}

// endpointPort extracts the port from an "ip:port" endpoint string.
func endpointPort(endpoint string) (int, error) {
	i := strings.LastIndexByte(endpoint, ':')
	if i < 0 {
		return 0, errors.Errorf("endpoint %q has no port", endpoint)
	}
	port, err := strconv.Atoi(endpoint[i+1:])
	if err != nil {
		return 0, errors.Wrapf(err, "bad port in endpoint %q", endpoint)
	}
	return port, nil
}
