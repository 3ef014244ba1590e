package models

import (
	"encoding/json"
	"fmt"
)

// SchemaError 网关返回的记录缺少必填字段或无法解析
type SchemaError struct {
	Collection string
	Field      string
	Err        error
}

func (e *SchemaError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed %s record: %v", e.Collection, e.Err)
	}
	return fmt.Sprintf("malformed %s record: missing %s", e.Collection, e.Field)
}

func (e *SchemaError) Unwrap() error { return e.Err }

type record[T any] interface {
	*T
	Validate() error
	TableName() string
}

// Decode 解析并校验单条记录
func Decode[T any, P record[T]](raw json.RawMessage) (T, error) {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, &SchemaError{Collection: P(&v).TableName(), Err: err}
	}
	if err := P(&v).Validate(); err != nil {
		return v, err
	}
	return v, nil
}

// DecodeAll 按原顺序解析一组记录，任一条不合法即整体失败
func DecodeAll[T any, P record[T]](rows []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, raw := range rows {
		v, err := Decode[T, P](raw)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}
