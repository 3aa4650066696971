package nd

import (
	"bytes"
	"encoding/json"
)

// MarshalJSON encodes the array as nested JSON lists matching its dims, so a
// (2,3) array becomes [[a,b,c],[d,e,f]]. A 0-D array encodes as its sole
// element.
func (a *Array) MarshalJSON() ([]byte, error) {
	if len(a.dims) == 0 {
		if len(a.data) == 1 {
			return json.Marshal(a.data[0])
		}
		return json.Marshal(a.data)
	}
	var buf bytes.Buffer
	if err := encodeNested(&buf, a.data, a.dims); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeNested(buf *bytes.Buffer, data []any, dims []int) error {
	if len(dims) == 0 {
		b, err := json.Marshal(data[0])
		if err != nil {
			return err
		}
		buf.Write(b)
		return nil
	}
	stride := len(data) / dims[0]
	if dims[0] == 0 {
		stride = 0
	}
	buf.WriteByte('[')
	for i := 0; i < dims[0]; i++ {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := encodeNested(buf, data[i*stride:(i+1)*stride], dims[1:]); err != nil {
			return err
		}
	}
	buf.WriteByte(']')
	return nil
}
