package mailer

import (
	"bytes"
	"fmt"
	"html/template"
	"time"
)

const otpSubject = "Your password reset code"

var otpTemplate = template.Must(template.New("otp").Parse(`<html>
  <head>
    <meta charset="UTF-8" />
    <meta name="viewport" content="width=device-width, initial-scale=1.0"/>
    <title>Your OTP Code</title>
  </head>
  <body style="margin:0; padding:0; font-family: Arial, sans-serif; background-color:#f4f4f4;">
    <div style="max-width:600px; margin:40px auto; background:#ffffff; border-radius:12px; overflow:hidden;">
      <div style="background:#007bff; padding:20px; text-align:center; color:#fff;">
        <h1 style="margin:0; font-size:24px;">OTP Verification</h1>
      </div>
      <div style="padding:30px; text-align:center;">
        <p style="font-size:18px; color:#333; margin-bottom:15px;">
          Hello{{if .FirstName}} {{.FirstName}}{{end}},<br/> Use the OTP below to reset your password.
        </p>
        <div style="font-size:28px; font-weight:bold; letter-spacing:8px; background:#f1f1f1; padding:15px; border-radius:8px; display:inline-block; margin:20px 0;">
          {{.OTP}}
        </div>
        <p style="font-size:16px; color:#555; margin-bottom:20px;">
          This OTP will expire in <strong>{{.ExpireMinutes}} minutes</strong>.
        </p>
        <p style="font-size:14px; color:#777; line-height:1.5;">
          If you did not request this, you can safely ignore this email.
        </p>
      </div>
      <div style="background:#f9f9f9; padding:15px; text-align:center; font-size:12px; color:#999;">
        &copy; {{.Year}} {{.AppName}}. All rights reserved.
      </div>
    </div>
  </body>
</html>
`))

type OTPContent struct {
	FirstName     string
	OTP           string
	ExpireMinutes int
	AppName       string
	Year          int
}

// RenderOTP builds the password reset mail. The plain text part mirrors the HTML.
func RenderOTP(from, to string, content OTPContent) (*Message, error) {
	if content.Year == 0 {
		content.Year = time.Now().Year()
	}

	var body bytes.Buffer
	if err := otpTemplate.Execute(&body, content); err != nil {
		return nil, fmt.Errorf("render otp template: %w", err)
	}

	return &Message{
		From:    from,
		To:      to,
		Subject: otpSubject,
		HTML:    body.String(),
		Text: fmt.Sprintf("Use the code %s to reset your password. It expires in %d minutes.",
			content.OTP, content.ExpireMinutes),
	}, nil
}
