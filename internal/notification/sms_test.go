package notification

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTwilioSMS_RequiresCredentials(t *testing.T) {
	_, err := NewTwilioSMS("AC123", "", "+15550001111")
	assert.Error(t, err)
}

func TestTwilioSMS_BuildParams(t *testing.T) {
	s, err := NewTwilioSMS("AC123", "token", "+15550001111")
	require.NoError(t, err)

	params := s.buildParams("+91 (987) 654-3210", "Your luggage LUG-0001 is overdue")
	require.NotNil(t, params.To)
	require.NotNil(t, params.From)
	require.NotNil(t, params.Body)
	assert.Equal(t, "+919876543210", *params.To)
	assert.Equal(t, "+15550001111", *params.From)
	assert.Equal(t, "Your luggage LUG-0001 is overdue", *params.Body)
}

func TestToE164(t *testing.T) {
	assert.Equal(t, "+15551234567", toE164(" +1 555-123-4567 "))
	assert.Equal(t, "5551234567", toE164("(555) 123 4567"))
	assert.Equal(t, "+4420", toE164("+44+20"), "only a leading plus is kept")
}
