package message

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	m, err := Decode([]byte(`{"type":"REMAP","path":"/mnt/airlock/home2ved.0"}`))
	require.NoError(t, err)
	assert.Equal(t, TypeRemap, m.Type)
	assert.Equal(t, "/mnt/airlock/home2ved.0", m.Path)
	assert.NoError(t, m.Err())

	_, err = Decode([]byte(`{"path":"x"}`))
	assert.Error(t, err)

	_, err = Decode([]byte(`not json`))
	assert.Error(t, err)
}

func TestErr(t *testing.T) {
	m := NewError(errors.New("input and output files cannot be the same"))
	raw, err := m.Encode()
	require.NoError(t, err)

	back, err := Decode(raw)
	require.NoError(t, err)
	assert.EqualError(t, back.Err(), "input and output files cannot be the same")
}
