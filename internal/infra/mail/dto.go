package mail

import (
	"time"

	"gopkg.in/gomail.v2"
)

type TaskEmailData struct {
	RepName  string
	LeadName string
	Title    string
	Notes    string
	Priority string
	DueDate  time.Time
}

type EmailSender struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string

	// send delivers a built message; nil means SMTP via gomail.
	send func(m *gomail.Message) error
}
