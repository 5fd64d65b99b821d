package codec

import (
	"errors"
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"

	"github.com/yourusername/termctl/internal/models"
)

// DecodeError reports malformed wire data. It always carries the stage that
// failed so the client can show something useful.
type DecodeError struct {
	Op  string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Op, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsDecodeError reports whether err is or wraps a *DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

var (
	encMode cbor.EncMode
	decMode cbor.DecMode
)

func init() {
	var err error

	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("codec: CBOR encoder initialization failed: " + err.Error())
	}

	// The protocol has exactly two message kinds; anything the decoder does
	// not recognise is a malformed request rather than a newer peer.
	decMode, err = cbor.DecOptions{
		DupMapKey:         cbor.DupMapKeyEnforcedAPF,
		ExtraReturnErrors: cbor.ExtraDecErrorUnknownField,
		MaxNestedLevels:   16,
	}.DecMode()
	if err != nil {
		panic("codec: CBOR decoder initialization failed: " + err.Error())
	}
}

// EncodeRequest validates and encodes a request payload.
func EncodeRequest(req *models.Request) ([]byte, error) {
	if err := req.Message.Validate(); err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	data, err := encMode.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}
	return data, nil
}

// DecodeRequest decodes a request payload and checks the message invariants.
func DecodeRequest(data []byte) (*models.Request, error) {
	var req models.Request
	if err := decMode.Unmarshal(data, &req); err != nil {
		return nil, &DecodeError{Op: "request", Err: err}
	}
	if err := req.Message.Validate(); err != nil {
		return &req, &DecodeError{Op: "message", Err: err}
	}
	return &req, nil
}

// EncodeReply encodes a reply payload.
func EncodeReply(reply *models.Reply) ([]byte, error) {
	data, err := encMode.Marshal(reply)
	if err != nil {
		return nil, fmt.Errorf("encode reply: %w", err)
	}
	return data, nil
}

// DecodeReply decodes a reply payload.
func DecodeReply(data []byte) (*models.Reply, error) {
	var reply models.Reply
	if err := decMode.Unmarshal(data, &reply); err != nil {
		return nil, &DecodeError{Op: "reply", Err: err}
	}
	if !reply.OK && reply.Error == nil {
		return nil, &DecodeError{Op: "reply", Err: errors.New("failed reply without error detail")}
	}
	return &reply, nil
}

// WriteRequest encodes req and writes it as one frame.
func WriteRequest(w io.Writer, req *models.Request) error {
	data, err := EncodeRequest(req)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadRequest reads one frame and decodes it as a request. On a message
// invariant failure the partially decoded request is returned alongside the
// error so the caller can echo its id.
func ReadRequest(r io.Reader) (*models.Request, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeRequest(data)
}

// WriteReply encodes reply and writes it as one frame.
func WriteReply(w io.Writer, reply *models.Reply) error {
	data, err := EncodeReply(reply)
	if err != nil {
		return err
	}
	return WriteFrame(w, data)
}

// ReadReply reads one frame and decodes it as a reply.
func ReadReply(r io.Reader) (*models.Reply, error) {
	data, err := ReadFrame(r)
	if err != nil {
		return nil, err
	}
	return DecodeReply(data)
}
