package identity

import (
	"fmt"

	"student_portal_backend/internal/platform/mailer"
)

func verificationMessage(email, link string) mailer.Message {
	return mailer.Message{
		To:      email,
		Subject: "Verify your email for the Student Portal",
		Body: fmt.Sprintf("Hello,\n\nFollow this link to verify your email address (%s):\n\n%s\n\n"+
			"If you didn't ask to verify this address, you can ignore this email.\n", email, link),
	}
}

func passwordResetMessage(email, link string) mailer.Message {
	return mailer.Message{
		To:      email,
		Subject: "Reset your Student Portal password",
		Body: fmt.Sprintf("Hello,\n\nFollow this link to reset the password for %s:\n\n%s\n\n"+
			"If you didn't ask to reset your password, you can ignore this email.\n", email, link),
	}
}
