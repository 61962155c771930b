package protocol

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPayloadRoundTrip(t *testing.T) {
	in := &CreateLobby{LobbyName: "Alpha"}

	data, err := EncodePayload(in)
	require.NoError(t, err)

	out, err := DecodePayload(data)
	require.NoError(t, err)
	assert.Equal(t, in, out)
}

func TestDecodeSelectsHandlerByTag(t *testing.T) {
	data, err := EncodePayload(&SwapSeats{LobbyName: "Alpha", FirstSeat: 1, SecondSeat: 4})
	require.NoError(t, err)

	out, err := DecodePayload(data)
	require.NoError(t, err)

	swap, ok := out.(*SwapSeats)
	require.True(t, ok, "expected *SwapSeats, got %T", out)
	assert.Equal(t, 1, swap.FirstSeat)
	assert.Equal(t, 4, swap.SecondSeat)
}

func TestDecodeUnknownTag(t *testing.T) {
	_, err := DecodePayload([]byte(`{"type":"launch_missiles","data":{}}`))
	require.Error(t, err)

	var decErr *DecodeError
	assert.True(t, errors.As(err, &decErr))
	assert.Contains(t, decErr.Error(), "launch_missiles")
}

func TestDecodeMalformedEnvelope(t *testing.T) {
	var decErr *DecodeError
	_, err := DecodePayload([]byte(`not json at all`))
	assert.True(t, errors.As(err, &decErr))

	_, err = DecodePayload([]byte(`{"type":"swap_seats","data":{"first_seat":"one"}}`))
	assert.True(t, errors.As(err, &decErr))
}

func TestEmptyBodyPayloads(t *testing.T) {
	data, err := EncodePayload(&ServerInfoRequest{})
	require.NoError(t, err)

	out, err := DecodePayload(data)
	require.NoError(t, err)
	assert.IsType(t, &ServerInfoRequest{}, out)
}

func TestKeyExchangeCarriesRawKey(t *testing.T) {
	pub := make([]byte, 32)
	for i := range pub {
		pub[i] = byte(i)
	}
	data, err := EncodePayload(&KeyExchange{ClientID: "abc", PublicKey: pub})
	require.NoError(t, err)

	out, err := DecodePayload(data)
	require.NoError(t, err)
	ke := out.(*KeyExchange)
	assert.Equal(t, "abc", ke.ClientID)
	assert.Equal(t, pub, ke.PublicKey)
}
