package main

import (
	"encoding/json"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/example/velora/internal/config"
	"github.com/example/velora/internal/queue"
	"github.com/example/velora/internal/services"
)

// Sender delivers a rendered mail.
type Sender interface {
	Send(to, subject, body string) error
}

func main() {
	cfg := config.Load()

	mailQueue, err := queue.Connect(cfg.RabbitURL, cfg.MailQueue)
	if err != nil {
		log.Fatalf("rabbitmq connect: %v", err)
	}
	defer mailQueue.Close()

	deliveries, err := mailQueue.Consume()
	if err != nil {
		log.Fatalf("consume: %v", err)
	}

	var sender Sender = newSMTPSender(cfg)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	log.Printf("[Worker] consuming queue %q", cfg.MailQueue)
	for {
		select {
		case <-quit:
			log.Println("[Worker] shutting down")
			return
		case delivery, ok := <-deliveries:
			if !ok {
				log.Println("[Worker] delivery channel closed")
				return
			}

			var msg services.MailMessage
			if err := json.Unmarshal(delivery.Body, &msg); err != nil {
				// Malformed payloads can never succeed; drop them.
				log.Printf("[Worker] dropping malformed message: %v", err)
				delivery.Nack(false, false)
				continue
			}

			if err := sender.Send(msg.To, msg.Subject, renderBody(msg)); err != nil {
				log.Printf("[Worker] send to %s failed, requeueing: %v", msg.To, err)
				delivery.Nack(false, true)
				continue
			}

			log.Printf("[Worker] sent %q to %s", msg.Subject, msg.To)
			delivery.Ack(false)
		}
	}
}

// renderBody turns a queued message into a plain-text mail body.
func renderBody(msg services.MailMessage) string {
	name := msg.Data["name"]
	otp := msg.Data["otp"]
	ttl := msg.Data["ttlMinutes"]

	switch msg.Template {
	case services.MailTemplateVerifyEmail:
		return fmt.Sprintf("Hi %s,\n\nYour verification code is %s. It expires in %s minutes.\n\nIf you did not create an account, ignore this email.\n", name, otp, ttl)
	case services.MailTemplatePasswordReset:
		return fmt.Sprintf("Hi %s,\n\nYour password reset code is %s. It expires in %s minutes.\n\nIf you did not request a reset, ignore this email.\n", name, otp, ttl)
	default:
		return fmt.Sprintf("Hi %s,\n\nYour code is %s.\n", name, otp)
	}
}

type smtpSender struct {
	addr string
	from string
	auth smtp.Auth
}

func newSMTPSender(cfg *config.Config) *smtpSender {
	var auth smtp.Auth
	if cfg.SMTPUser != "" {
		host, _, err := net.SplitHostPort(cfg.SMTPAddr)
		if err != nil {
			host = cfg.SMTPAddr
		}
		auth = smtp.PlainAuth("", cfg.SMTPUser, cfg.SMTPPass, host)
	}
	return &smtpSender{addr: cfg.SMTPAddr, from: cfg.MailFrom, auth: auth}
}

func (s *smtpSender) Send(to, subject, body string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", s.from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\nContent-Type: text/plain; charset=utf-8\r\n\r\n")
	b.WriteString(body)

	return smtp.SendMail(s.addr, s.auth, s.from, []string{to}, []byte(b.String()))
}
