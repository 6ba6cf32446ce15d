package redisconn

import "github.com/kvlink/redisconn/resp"

// encodeQuery renders q as one RESP command array.
func encodeQuery(buf []byte, q Query) ([]byte, error) {
	buf, err := resp.AppendQuery(buf, []interface{}(q))
	if err != nil {
		return nil, newErrWrap(ErrKindRequest, ErrArgumentType, err)
	}
	return buf, nil
}

// replyFromValue converts the codec's untyped ReplyValue into the package's
// tagged Reply.
func replyFromValue(v resp.ReplyValue) Reply {
	switch v.Kind {
	case '+':
		return simpleString(v.Str)
	case '-':
		return errorReply(v.Str)
	case ':':
		return integerReply(v.Int)
	case '$':
		return bulkString(v.Bulk)
	case '*':
		if v.Array == nil {
			return arrayReply(nil)
		}
		arr := make([]Reply, len(v.Array))
		for i, e := range v.Array {
			arr[i] = replyFromValue(e)
		}
		return arrayReply(arr)
	default:
		return errorReply("unknown reply kind")
	}
}
