package tagdata

import (
	"github.com/pkg/errors"

	"github.com/S-SB/gp-tag/reedsolomon"
)

// ErrDecodeFailed indicates the codeword could not be corrected; the
// payload is unrecoverable from this frame.
var ErrDecodeFailed = errors.New("tagdata: error correction capacity exceeded")

// EncodeCodeword packs the payload and appends Reed-Solomon parity,
// returning the CodewordBytes-long protected codeword.
func EncodeCodeword(td *TagData) ([]byte, error) {
	if err := td.Validate(); err != nil {
		return nil, errors.Wrap(err, "cannot encode invalid payload")
	}
	codeword := make([]byte, CodewordBytes)
	copy(codeword, td.Pack())
	if err := reedsolomon.Encode(codeword, ECBytes); err != nil {
		return nil, err
	}
	return codeword, nil
}

// DecodeCodeword corrects up to MaxCorrectableErrors byte errors in the
// codeword and demaps the payload fields, returning the payload and the
// number of corrected errors. ErrDecodeFailed means the correction
// capacity was exceeded. Field-level invariants are not checked here;
// callers decide what to do with an out-of-range payload via Validate.
func DecodeCodeword(codeword []byte) (*TagData, int, error) {
	if len(codeword) != CodewordBytes {
		return nil, 0, errors.Errorf("codeword must be %d bytes, got %d", CodewordBytes, len(codeword))
	}
	buf := make([]byte, CodewordBytes)
	copy(buf, codeword)
	corrected, err := reedsolomon.Decode(buf, ECBytes)
	if err != nil {
		return nil, 0, errors.Wrap(ErrDecodeFailed, err.Error())
	}
	td, err := Unpack(buf[:DataBytes])
	if err != nil {
		return nil, corrected, err
	}
	return td, corrected, nil
}
