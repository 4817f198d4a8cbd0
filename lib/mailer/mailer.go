package mailer

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"
	"vtaccess/lib/course"
	"vtaccess/lib/semester"
	"vtaccess/lib/telemetry"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jordan-wright/email"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("vtaccess.lib.mailer")

type SmtpConfig struct {
	Server       string `json:"server" validate:"required"`
	Port         int    `json:"port" validate:"required"`
	EmailAddress string `json:"email_address" validate:"required,email"`
	Password     string `json:"password"`
}

type Mailer struct {
	smtp SmtpConfig
}

func New(config SmtpConfig) Mailer {
	return Mailer{smtp: config}
}

// ExamTable renders exams as a plain text table, one row per exam.
func ExamTable(exams []*course.Course) string {
	t := table.NewWriter()
	t.SetStyle(table.StyleDefault)
	t.AppendHeader(table.Row{"Course", "Name", "Date", "Begin", "End"})
	for _, exam := range exams {
		date := "TBA"
		if exam.Date != nil {
			date = exam.Date.Format("Mon Jan 2")
		}
		t.AppendRow(table.Row{exam.Code(), exam.Name, date, exam.BeginTime, exam.EndTime})
	}
	return t.Render()
}

func (m Mailer) compose(to []string, term semester.Code, exams []*course.Course) *email.Email {
	mail := email.NewEmail()
	mail.From = fmt.Sprintf("vtaccess <%s>", m.smtp.EmailAddress)
	mail.To = to
	mail.Subject = fmt.Sprintf("Final exams for %s", term.Name())

	body := fmt.Sprintf(`Your final exam schedule for %s:

%s

Check Hokie SPA before each exam, the registrar may still move them.`, term.Name(), ExamTable(exams))
	mail.Text = []byte(body)
	return mail
}

// SendExams mails the exam table to the given addresses. Servers that
// do not offer AUTH get the message without authentication.
func (m Mailer) SendExams(ctx context.Context, to []string, term semester.Code, exams []*course.Course) error {
	_, span := tracer.Start(ctx, "mailer:SendExams")
	defer span.End()
	span.SetAttributes(attribute.Int("recipients", len(to)), attribute.Int("exams", len(exams)))

	if len(to) == 0 {
		return fmt.Errorf("no recipients")
	}
	mail := m.compose(to, term, exams)
	addr := fmt.Sprintf("%s:%d", m.smtp.Server, m.smtp.Port)

	err := mail.Send(addr, smtp.PlainAuth("", m.smtp.EmailAddress, m.smtp.Password, m.smtp.Server))
	if err != nil && strings.Contains(err.Error(), "server doesn't support AUTH") {
		err = mail.Send(addr, nil)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to send email")
		return err
	}
	return nil
}
