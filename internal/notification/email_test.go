package notification

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/sendgrid/sendgrid-go/helpers/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSendGridMailer_RequiresConfig(t *testing.T) {
	_, err := NewSendGridMailer("", "desk@example.com", "Desk")
	assert.Error(t, err)

	_, err = NewSendGridMailer("SG.key", "", "Desk")
	assert.Error(t, err)

	m, err := NewSendGridMailer("SG.key", "desk@example.com", "Desk")
	require.NoError(t, err)
	assert.NotNil(t, m)
}

func TestSendGridMailer_BuildMessage(t *testing.T) {
	m, err := NewSendGridMailer("SG.key", "desk@example.com", "Luggage Storage")
	require.NoError(t, err)

	msg := m.buildMessage(Email{
		ToName:    "Priya Sharma",
		ToAddress: "priya@example.com",
		Subject:   "Your receipt LUG-0001",
		PlainText: "Total 200",
		HTML:      "<p>Total 200</p>",
		Attachments: []Attachment{
			{Filename: "LUG-0001.pdf", ContentType: "application/pdf", Content: []byte("%PDF-1.3")},
		},
	})

	var body struct {
		From struct {
			Email string `json:"email"`
			Name  string `json:"name"`
		} `json:"from"`
		Subject          string `json:"subject"`
		Personalizations []struct {
			To []struct {
				Email string `json:"email"`
			} `json:"to"`
		} `json:"personalizations"`
		Attachments []struct {
			Content     string `json:"content"`
			Filename    string `json:"filename"`
			Type        string `json:"type"`
			Disposition string `json:"disposition"`
		} `json:"attachments"`
	}
	require.NoError(t, json.Unmarshal(mail.GetRequestBody(msg), &body))

	assert.Equal(t, "desk@example.com", body.From.Email)
	assert.Equal(t, "Luggage Storage", body.From.Name)
	assert.Equal(t, "Your receipt LUG-0001", body.Subject)
	require.Len(t, body.Personalizations, 1)
	require.Len(t, body.Personalizations[0].To, 1)
	assert.Equal(t, "priya@example.com", body.Personalizations[0].To[0].Email)

	require.Len(t, body.Attachments, 1)
	assert.Equal(t, "LUG-0001.pdf", body.Attachments[0].Filename)
	assert.Equal(t, "application/pdf", body.Attachments[0].Type)
	assert.Equal(t, "attachment", body.Attachments[0].Disposition)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte("%PDF-1.3")), body.Attachments[0].Content)
}
