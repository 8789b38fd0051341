package email

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/ses/types"
)

// Service handles sending emails via AWS SES
type Service struct {
	client    *ses.Client
	fromEmail string
	fromName  string
	baseURL   string
}

// NewService creates a new email service using AWS SES
func NewService(region, fromEmail, fromName, baseURL string) (*Service, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := ses.NewFromConfig(cfg)

	return &Service{
		client:    client,
		fromEmail: fromEmail,
		fromName:  fromName,
		baseURL:   baseURL,
	}, nil
}

// SendPayoutDecisionEmail notifies a seller that their payout request was
// approved or rejected.
func (e *Service) SendPayoutDecisionEmail(ctx context.Context, toEmail string, approved bool, amountCents int64, note string) error {
	decision := "approved"
	if !approved {
		decision = "rejected"
	}
	subject := fmt.Sprintf("Your payout request was %s", decision)
	amount := fmt.Sprintf("$%.2f", float64(amountCents)/100)

	htmlBody := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head>
			<meta charset="UTF-8">
			<style>
				body { font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; line-height: 1.6; color: #333; }
				.container { max-width: 600px; margin: 0 auto; padding: 20px; }
			</style>
		</head>
		<body>
			<div class="container">
				<h1>Payout request %s</h1>
				<p>Your payout request for %s has been %s.</p>
				<p>%s</p>
				<p>You can review your payments at <a href="%s/payments">%s/payments</a>.</p>
				<hr>
				<p style="color: #999; font-size: 12px;">This is an automated message from Melodix.</p>
			</div>
		</body>
		</html>
	`, decision, amount, decision, note, e.baseURL, e.baseURL)

	textBody := fmt.Sprintf(`Payout request %s

Your payout request for %s has been %s.

%s

Review your payments at %s/payments.

This is an automated message from Melodix.
`, decision, amount, decision, note, e.baseURL)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

// SendPurchaseReceiptEmail sends the buyer a receipt after a completed purchase
func (e *Service) SendPurchaseReceiptEmail(ctx context.Context, toEmail, itemName string, priceCents int64) error {
	subject := "Your Melodix purchase receipt"
	amount := fmt.Sprintf("$%.2f", float64(priceCents)/100)

	htmlBody := fmt.Sprintf(`
		<!DOCTYPE html>
		<html>
		<head><meta charset="UTF-8"></head>
		<body>
			<h1>Thanks for your purchase</h1>
			<p>You bought <strong>%s</strong> for %s.</p>
			<p style="color: #999; font-size: 12px;">This is an automated message from Melodix.</p>
		</body>
		</html>
	`, itemName, amount)

	textBody := fmt.Sprintf("Thanks for your purchase\n\nYou bought %s for %s.\n\nThis is an automated message from Melodix.\n", itemName, amount)

	return e.send(ctx, toEmail, subject, htmlBody, textBody)
}

func (e *Service) send(ctx context.Context, toEmail, subject, htmlBody, textBody string) error {
	from := e.fromEmail
	if e.fromName != "" {
		from = fmt.Sprintf("%s <%s>", e.fromName, e.fromEmail)
	}

	input := &ses.SendEmailInput{
		Source: aws.String(from),
		Destination: &types.Destination{
			ToAddresses: []string{toEmail},
		},
		Message: &types.Message{
			Subject: &types.Content{
				Data:    aws.String(subject),
				Charset: aws.String("UTF-8"),
			},
			Body: &types.Body{
				Html: &types.Content{
					Data:    aws.String(htmlBody),
					Charset: aws.String("UTF-8"),
				},
				Text: &types.Content{
					Data:    aws.String(textBody),
					Charset: aws.String("UTF-8"),
				},
			},
		},
	}

	_, err := e.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email: %w", err)
	}
	return nil
}
