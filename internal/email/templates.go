package email

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/vinabook/bookshop/internal/domain"
)

// Message is a rendered email ready for a Notifier.
type Message struct {
	Subject string
	Text    string
	HTML    string
}

var confirmationHTML = template.Must(template.New("confirmation").Parse(`<p>Hi {{.Username}},</p>
<p>Thank you for your purchase. Your order contains:</p>
<ul>
{{- range .Lines}}
<li>{{.BookName}} &times; {{.Quantity}}</li>
{{- end}}
</ul>
<p>We will let you know as soon as it ships.</p>`))

// RenderConfirmation builds the single confirmation email listing every
// purchased line of one checkout.
func RenderConfirmation(username string, lines []domain.CheckoutLine) (Message, error) {
	var text strings.Builder
	fmt.Fprintf(&text, "Hi %s,\n\nThank you for your purchase. Your order contains:\n", username)
	for _, line := range lines {
		fmt.Fprintf(&text, "  - %s x %d\n", line.BookName, line.Quantity)
	}
	text.WriteString("\nWe will let you know as soon as it ships.\n")

	var html strings.Builder
	err := confirmationHTML.Execute(&html, struct {
		Username string
		Lines    []domain.CheckoutLine
	}{username, lines})
	if err != nil {
		return Message{}, err
	}

	return Message{
		Subject: "Order confirmation",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// RenderStatusUpdate builds the status notification for one order. Each
// well-known status has its own subject and body; anything else gets the
// generic template.
func RenderStatusUpdate(username, orderID string, status domain.OrderStatus) Message {
	var subject, body string
	switch status {
	case domain.OrderStatusProcessing:
		subject = "Your order is being processed"
		body = fmt.Sprintf("Hi %s,\n\nOrder %s is now being processed. We are preparing your books for shipment.\n", username, orderID)
	case domain.OrderStatusCompleted:
		subject = "Your order is complete"
		body = fmt.Sprintf("Hi %s,\n\nOrder %s has been delivered. Enjoy your books!\n", username, orderID)
	case domain.OrderStatusCanceled:
		subject = "Your order was canceled"
		body = fmt.Sprintf("Hi %s,\n\nOrder %s has been canceled. If you did not request this, please contact support.\n", username, orderID)
	default:
		subject = "Order status update"
		body = fmt.Sprintf("Hi %s,\n\nOrder %s is now %q.\n", username, orderID, status)
	}

	html := "<p>" + strings.ReplaceAll(template.HTMLEscapeString(strings.TrimSpace(body)), "\n", "<br>") + "</p>"
	return Message{Subject: subject, Text: body, HTML: html}
}
