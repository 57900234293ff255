package mail

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/troublesprouter/freight-crm/internal/entity"
	"gopkg.in/gomail.v2"
)

var taskTemplate = template.Must(template.New("task").Parse(`<p>Hi {{.RepName}},</p>
<p>A <strong>{{.Priority}}</strong> priority task was added to your list:</p>
<p><strong>{{.Title}}</strong></p>
{{if .Notes}}<p>{{.Notes}}</p>{{end}}
<p>Company: {{.LeadName}}<br>Due: {{.DueDate.Format "Jan 2, 2006"}}</p>`))

func NewEmailSender(host string, port int, user, password, from string) *EmailSender {
	return &EmailSender{
		Host:     host,
		Port:     port,
		User:     user,
		Password: password,
		From:     from,
	}
}

// NotifyTask emails the rep about a task the inactivity sweep created.
func (s *EmailSender) NotifyTask(ctx context.Context, rep *entity.Rep, lead *entity.Lead, task *entity.Task) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if rep.Email == "" {
		return fmt.Errorf("rep %s has no email address", rep.ID)
	}

	m, err := s.buildTaskMessage(rep, lead, task)
	if err != nil {
		return err
	}
	return s.deliver(m)
}

func (s *EmailSender) buildTaskMessage(rep *entity.Rep, lead *entity.Lead, task *entity.Task) (*gomail.Message, error) {
	data := TaskEmailData{
		RepName:  rep.Name,
		LeadName: lead.Name,
		Title:    task.Title,
		Notes:    task.Notes,
		Priority: string(task.Priority),
		DueDate:  task.DueDate,
	}

	var body bytes.Buffer
	if err := taskTemplate.Execute(&body, data); err != nil {
		return nil, fmt.Errorf("failed to render task email: %w", err)
	}

	m := gomail.NewMessage()
	m.SetHeader("From", s.From)
	m.SetHeader("To", rep.Email)
	m.SetHeader("Subject", task.Title)
	m.SetBody("text/html", body.String())
	return m, nil
}

func (s *EmailSender) deliver(m *gomail.Message) error {
	if s.send != nil {
		return s.send(m)
	}
	d := gomail.NewDialer(s.Host, s.Port, s.User, s.Password)
	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
