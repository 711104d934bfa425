package eventstore

import (
	"encoding/json"

	"github.com/vmihailenco/msgpack/v5"
)

// Serializer 快照状态与 Redis 事件记录的编解码接口。
type Serializer interface {
	Marshal(value any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// MessagePackSerializer 默认序列化器，二进制紧凑且编解码开销低。
type MessagePackSerializer struct{}

func (m *MessagePackSerializer) Marshal(value any) ([]byte, error) {
	return msgpack.Marshal(value)
}

func (m *MessagePackSerializer) Unmarshal(data []byte, dest any) error {
	return msgpack.Unmarshal(data, dest)
}

// JSONSerializer 可读性优先的替代序列化器。
type JSONSerializer struct{}

func (j *JSONSerializer) Marshal(value any) ([]byte, error) {
	return json.Marshal(value)
}

func (j *JSONSerializer) Unmarshal(data []byte, dest any) error {
	return json.Unmarshal(data, dest)
}
