package services

import (
	"crypto/rand"
	"fmt"
	"log"
	"math/big"
	"os"

	"github.com/resend/resend-go/v2"
)

type EmailService struct {
	client *resend.Client
	from   string
}

func NewEmailService() *EmailService {
	apiKey := os.Getenv("RESEND_API_KEY")
	from := os.Getenv("EMAIL_FROM")
	if from == "" {
		from = "Seekr <noreply@seekr.market>"
	}
	if apiKey == "" {
		log.Println("⚠️  RESEND_API_KEY not set, emails will fail to send")
	}

	return &EmailService{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

// GenerateOTP generates a 6-digit OTP
func GenerateOTP() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// SendOTPEmail sends OTP via email. Purpose is "signup" or "reset".
func (es *EmailService) SendOTPEmail(to, otp, purpose string) error {
	subject := "Your Seekr verification code"
	heading := "Welcome to Seekr!"
	intro := "Thanks for signing up. Use the code below to verify your email address:"
	if purpose == "reset" {
		subject = "Reset your Seekr password"
		heading = "Password Reset Request"
		intro = "Use the code below to reset your password:"
	}

	body := fmt.Sprintf(`
<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; line-height: 1.6; color: #333;">
  <div style="max-width: 600px; margin: 0 auto; padding: 20px;">
    <h2>%s</h2>
    <p>%s</p>
    <div style="background-color: #f4f4f4; border: 2px dashed #1a73e8; padding: 20px; text-align: center; margin: 20px 0; border-radius: 5px;">
      <span style="font-size: 32px; font-weight: bold; color: #1a73e8; letter-spacing: 5px;">%s</span>
    </div>
    <p>This code expires in <strong>10 minutes</strong>.</p>
    <p>If you didn't request this, you can ignore this email.</p>
  </div>
</body>
</html>
`, heading, intro, otp)

	params := &resend.SendEmailRequest{
		From:    es.from,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}

	if _, err := es.client.Emails.Send(params); err != nil {
		return fmt.Errorf("failed to send OTP email: %w", err)
	}
	return nil
}
