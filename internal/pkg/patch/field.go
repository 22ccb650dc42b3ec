// internal/pkg/patch/field.go
package patch

import (
	"bytes"
	"encoding/json"
)

// Field 是部分更新请求中的一个字段，区分三种状态：
// 未出现（Set=false）、显式置空（Set=true, Null=true）、赋值（Set=true, Null=false）。
type Field[T any] struct {
	Set   bool
	Null  bool
	Value T
}

// Of 构造一个已赋值的字段
func Of[T any](v T) Field[T] {
	return Field[T]{Set: true, Value: v}
}

// Null 构造一个显式置空的字段
func Null[T any]() Field[T] {
	return Field[T]{Set: true, Null: true}
}

// UnmarshalJSON 只有当 key 出现在 JSON 中时才会被调用，因此可以据此标记 Set
func (f *Field[T]) UnmarshalJSON(data []byte) error {
	f.Set = true
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		f.Null = true
		var zero T
		f.Value = zero
		return nil
	}
	f.Null = false
	return json.Unmarshal(data, &f.Value)
}

// Ptr 返回值指针，Null 时返回 nil。仅在 Set 为 true 时有意义。
func (f Field[T]) Ptr() *T {
	if f.Null {
		return nil
	}
	v := f.Value
	return &v
}

// ApplyTo 把字段合并到可空目标上
func (f Field[T]) ApplyTo(dst **T) {
	if !f.Set {
		return
	}
	*dst = f.Ptr()
}
