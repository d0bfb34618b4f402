package email

import (
	"context"
	"fmt"
	"net/smtp"
	"strings"

	"go.uber.org/zap"
)

type SMTPNotifier struct {
	host   string
	port   int
	from   string
	send   func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
	logger *zap.Logger
}

func NewSMTPNotifier(host string, port int, from string, logger *zap.Logger) *SMTPNotifier {
	return &SMTPNotifier{host: host, port: port, from: from, send: smtp.SendMail, logger: logger}
}

// NotifyFailure mails the job owner once a job has failed for good. A
// failedPass of zero means the failure happened outside interpolation.
func (n *SMTPNotifier) NotifyFailure(_ context.Context, userEmail, jobID, videoKey string, failedPass int, errorMsg string) error {
	addr := fmt.Sprintf("%s:%d", n.host, n.port)

	msg := n.buildMessage(userEmail, jobID, videoKey, failedPass, errorMsg)
	if err := n.send(addr, nil, n.from, []string{userEmail}, []byte(msg)); err != nil {
		n.logger.Error("failed to send failure notification email",
			zap.String("to", userEmail),
			zap.String("job_id", jobID),
			zap.Error(err),
		)
		return fmt.Errorf("send email: %w", err)
	}

	n.logger.Info("failure notification email sent",
		zap.String("to", userEmail),
		zap.String("job_id", jobID),
		zap.Int("failed_pass", failedPass),
	)
	return nil
}

func (n *SMTPNotifier) buildMessage(userEmail, jobID, videoKey string, failedPass int, errorMsg string) string {
	var b strings.Builder
	b.WriteString("Hello,\r\n\r\n")
	b.WriteString("Your frame interpolation job has permanently failed.\r\n\r\n")
	fmt.Fprintf(&b, "Job ID: %s\r\n", jobID)
	fmt.Fprintf(&b, "Video: %s\r\n", videoKey)
	if failedPass > 0 {
		fmt.Fprintf(&b, "Failed at interpolation pass: %d\r\n", failedPass)
	}
	fmt.Fprintf(&b, "Error: %s\r\n\r\n", errorMsg)
	b.WriteString("Try fewer passes or the naive strategy, or contact support.\r\n\r\n")
	b.WriteString("-- FIAP X Interpolation Service")

	subject := fmt.Sprintf("FIAP X - Frame Interpolation Failed [Job %s]", jobID)
	return fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		n.from, userEmail, subject, b.String(),
	)
}
