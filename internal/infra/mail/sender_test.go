package mail

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/troublesprouter/freight-crm/internal/entity"
	"gopkg.in/gomail.v2"
)

func TestNotifyTask(t *testing.T) {
	owner := "rep-1"
	rep := &entity.Rep{ID: "rep-1", Name: "Dana", Email: "dana@broker.example"}
	lead := &entity.Lead{ID: "lead-1", Name: "Great Plains <Grain>", OwnerRepID: &owner}
	task := &entity.Task{
		Title:    "Reactivation call - Great Plains moved to inactive",
		Notes:    "No activity in 60+ days.",
		Priority: entity.PriorityHigh,
		DueDate:  time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC),
	}

	var sent *gomail.Message
	s := NewEmailSender("smtp.example", 587, "u", "p", "crm@broker.example")
	s.send = func(m *gomail.Message) error { sent = m; return nil }

	require.NoError(t, s.NotifyTask(context.Background(), rep, lead, task))
	require.NotNil(t, sent)

	assert.Equal(t, []string{"dana@broker.example"}, sent.GetHeader("To"))
	assert.Equal(t, []string{"crm@broker.example"}, sent.GetHeader("From"))
	assert.Equal(t, []string{task.Title}, sent.GetHeader("Subject"))

	var raw bytes.Buffer
	_, err := sent.WriteTo(&raw)
	require.NoError(t, err)
	body := raw.String()
	assert.Contains(t, body, "Dana")
	assert.Contains(t, body, "Mar 2, 2026")
	assert.NotContains(t, body, "<Grain>", "company name must be escaped")

	t.Run("rep without email", func(t *testing.T) {
		err := s.NotifyTask(context.Background(), &entity.Rep{ID: "rep-2"}, lead, task)
		assert.Error(t, err)
	})
}
