package email

import (
	"fmt"
	"net/smtp"
)

// Service sends transactional storefront email over SMTP.
type Service struct {
	host string
	port string
	from string
}

func NewService(host, port, from string) *Service {
	return &Service{host: host, port: port, from: from}
}

// SendInvoice sends the order confirmation / invoice email.
func (s *Service) SendInvoice(to, orderKey string, total int, items []OrderLine) error {
	subject := fmt.Sprintf("Your Desert Candle Works order %s", shortKey(orderKey))
	body := BuildInvoiceBody(orderKey, total, items)
	return s.send(to, subject, body)
}

// SendShippingUpdate sends the shipped/delivered notification.
func (s *Service) SendShippingUpdate(to, orderKey, trackingNumber, status string) error {
	subject := fmt.Sprintf("Order %s %s", shortKey(orderKey), status)
	body := BuildShippingBody(orderKey, trackingNumber, status)
	return s.send(to, subject, body)
}

func (s *Service) send(to, subject, body string) error {
	msg := fmt.Sprintf("From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
		s.from, to, subject, body)
	addr := fmt.Sprintf("%s:%s", s.host, s.port)
	return smtp.SendMail(addr, nil, s.from, []string{to}, []byte(msg))
}

func shortKey(orderKey string) string {
	if len(orderKey) > 8 {
		return orderKey[:8]
	}
	return orderKey
}
