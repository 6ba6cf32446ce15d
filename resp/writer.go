// Package resp implements the RESP wire protocol: encoding one command as
// an array of bulk strings, and decoding exactly one reply value per the
// five-kind RESP grammar. It has no knowledge of connections, queues, or
// priorities — those live in the parent redisconn package, which consumes
// resp purely through AppendQuery and Read.
package resp

import (
	"fmt"
	"strconv"
)

// AppendQuery appends the RESP encoding of a command (cmd plus args) to buf
// and returns the extended slice. Accepted arg types mirror what Redis
// bulk-string-encodes: string, []byte, any integer type, float32/float64,
// bool, and nil.
func AppendQuery(buf []byte, args []interface{}) ([]byte, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("resp: empty query")
	}
	buf = appendHead(buf, '*', int64(len(args)))
	for _, val := range args {
		var err error
		buf, err = appendArg(buf, val)
		if err != nil {
			return nil, err
		}
	}
	return buf, nil
}

func appendArg(buf []byte, val interface{}) ([]byte, error) {
	switch v := val.(type) {
	case nil:
		buf = appendHead(buf, '$', 0)
	case string:
		buf = appendHead(buf, '$', int64(len(v)))
		buf = append(buf, v...)
	case []byte:
		buf = appendHead(buf, '$', int64(len(v)))
		buf = append(buf, v...)
	case bool:
		if v {
			buf = appendHead(buf, '$', 1)
			buf = append(buf, '1')
		} else {
			buf = appendHead(buf, '$', 1)
			buf = append(buf, '0')
		}
	case int:
		buf = appendBulkInt(buf, int64(v))
	case uint:
		str := strconv.FormatUint(uint64(v), 10)
		buf = appendHead(buf, '$', int64(len(str)))
		buf = append(buf, str...)
	case int64:
		buf = appendBulkInt(buf, v)
	case uint64:
		str := strconv.FormatUint(v, 10)
		buf = appendHead(buf, '$', int64(len(str)))
		buf = append(buf, str...)
	case int32:
		buf = appendBulkInt(buf, int64(v))
	case uint32:
		buf = appendBulkInt(buf, int64(v))
	case int16:
		buf = appendBulkInt(buf, int64(v))
	case uint16:
		buf = appendBulkInt(buf, int64(v))
	case int8:
		buf = appendBulkInt(buf, int64(v))
	case uint8:
		buf = appendBulkInt(buf, int64(v))
	case float32:
		str := strconv.FormatFloat(float64(v), 'f', -1, 32)
		buf = appendHead(buf, '$', int64(len(str)))
		buf = append(buf, str...)
	case float64:
		str := strconv.FormatFloat(v, 'f', -1, 64)
		buf = appendHead(buf, '$', int64(len(str)))
		buf = append(buf, str...)
	default:
		return nil, fmt.Errorf("resp: argument type %T is not encodable", val)
	}
	return append(buf, '\r', '\n'), nil
}

func appendInt(b []byte, i int64) []byte {
	if i == 0 {
		return append(b, '0')
	}
	var u uint64
	if i > 0 {
		u = uint64(i)
	} else {
		b = append(b, '-')
		u = uint64(-i)
	}
	var digits [20]byte
	p := len(digits)
	for u > 0 {
		p--
		digits[p] = byte(u%10) + '0'
		u /= 10
	}
	return append(b, digits[p:]...)
}

func appendHead(b []byte, t byte, i int64) []byte {
	b = append(b, t)
	b = appendInt(b, i)
	return append(b, '\r', '\n')
}

func appendBulkInt(b []byte, i int64) []byte {
	str := strconv.FormatInt(i, 10)
	b = appendHead(b, '$', int64(len(str)))
	return append(b, str...)
}
