package resp_test

import (
	"testing"

	"github.com/kvlink/redisconn/resp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendQuery_Strings(t *testing.T) {
	buf, err := resp.AppendQuery(nil, []interface{}{"GET", "one"})
	require.NoError(t, err)
	assert.Equal(t, "*2\r\n$3\r\nGET\r\n$3\r\none\r\n", string(buf))
}

func TestAppendQuery_MixedArgTypes(t *testing.T) {
	buf, err := resp.AppendQuery(nil, []interface{}{
		"SET", []byte("k"), 5, int64(-3), uint(2), true, false, nil, float64(1.5),
	})
	require.NoError(t, err)
	assert.Equal(t, byte('*'), buf[0])
	assert.Contains(t, string(buf), "$1\r\nk\r\n")
	assert.Contains(t, string(buf), "$1\r\n5\r\n")
	assert.Contains(t, string(buf), "$2\r\n-3\r\n")
	assert.Contains(t, string(buf), "$1\r\n1\r\n")
	assert.Contains(t, string(buf), "$1\r\n0\r\n")
	assert.Contains(t, string(buf), "$0\r\n\r\n")
	assert.Contains(t, string(buf), "$3\r\n1.5\r\n")
}

func TestAppendQuery_AppendsToExistingBuffer(t *testing.T) {
	buf, err := resp.AppendQuery([]byte("PREFIX"), []interface{}{"PING"})
	require.NoError(t, err)
	assert.Equal(t, "PREFIX*1\r\n$4\r\nPING\r\n", string(buf))
}

func TestAppendQuery_RejectsEmptyQuery(t *testing.T) {
	_, err := resp.AppendQuery(nil, nil)
	assert.Error(t, err)
}

func TestAppendQuery_RejectsUnsupportedArgType(t *testing.T) {
	_, err := resp.AppendQuery(nil, []interface{}{"PING", struct{}{}})
	assert.Error(t, err)
}

func TestAppendQuery_RoundTripsThroughRead(t *testing.T) {
	buf, err := resp.AppendQuery(nil, []interface{}{"SET", "k", "v"})
	require.NoError(t, err)

	r := lines2bufio(string(buf))
	v, err := resp.Read(r)
	require.NoError(t, err)
	require.Equal(t, byte('*'), v.Kind)
	require.Len(t, v.Array, 3)
	assert.Equal(t, []byte("SET"), v.Array[0].Bulk)
	assert.Equal(t, []byte("k"), v.Array[1].Bulk)
	assert.Equal(t, []byte("v"), v.Array[2].Bulk)
}
