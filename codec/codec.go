package codec

import (
	"fmt"

	"github.com/KaviraWallet/kavira/codec/json"
)

type CodecType byte

const (
	CodecType_Unknown CodecType = iota
	CodecType_JSON
)

type Marshaler interface {
	Marshal(interface{}) ([]byte, error)

	Unmarshal([]byte, interface{}) error
}

func CreateMarshaler(codecType CodecType) Marshaler {
	switch codecType {
	case CodecType_JSON:
		return &json.MarshalJson{}
	default:
		panic(fmt.Errorf("invalid codec type %d when CreateMarshaler", codecType).Error())
	}
}
