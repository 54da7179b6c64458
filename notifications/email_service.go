package notifications

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	config "github.com/anjiri1684/studio_booking/configs"
	"github.com/anjiri1684/studio_booking/models"
	"github.com/wneessen/go-mail"
	"gorm.io/gorm"
)

// EmailNotifier sends HTML mail over SMTP. Recipients and slot times are read
// from the database at send time.
type EmailNotifier struct {
	db         *gorm.DB
	client     *mail.Client
	sender     string
	senderName string
}

func NewEmailNotifier(db *gorm.DB, cfg config.MailConfig) (*EmailNotifier, error) {
	if cfg.Host == "" || cfg.Sender == "" {
		return nil, fmt.Errorf("smtp host and sender are required")
	}

	client, err := mail.NewClient(
		cfg.Host,
		mail.WithPort(cfg.Port),
		mail.WithSMTPAuth(mail.SMTPAuthPlain),
		mail.WithUsername(cfg.Username),
		mail.WithPassword(cfg.Password),
	)
	if err != nil {
		return nil, fmt.Errorf("initialize smtp client: %w", err)
	}

	log.Println("✅ Email service initialized successfully.")
	return &EmailNotifier{db: db, client: client, sender: cfg.Sender, senderName: cfg.SenderName}, nil
}

func (n *EmailNotifier) send(ctx context.Context, toName, toEmail, subject, htmlContent string) error {
	if toEmail == "" || !strings.Contains(toEmail, "@") {
		return fmt.Errorf("invalid recipient email: %s", toEmail)
	}

	msg := mail.NewMsg()
	if err := msg.FromFormat(n.senderName, n.sender); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := msg.AddToFormat(toName, toEmail); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	msg.Subject(subject)
	msg.SetBodyString(mail.TypeTextHTML, htmlContent)

	if err := n.client.DialAndSendWithContext(ctx, msg); err != nil {
		return fmt.Errorf("send email to %s: %w", toEmail, err)
	}

	log.Printf("✅ Email sent successfully to %s", toEmail)
	return nil
}

func (n *EmailNotifier) customer(ctx context.Context, id interface{}) (models.User, error) {
	var user models.User
	err := n.db.WithContext(ctx).First(&user, "id = ?", id).Error
	return user, err
}

func (n *EmailNotifier) bookingDetails(ctx context.Context, b models.Booking) (models.User, models.AvailabilitySlot, error) {
	user, err := n.customer(ctx, b.CustomerID)
	if err != nil {
		return user, models.AvailabilitySlot{}, err
	}
	var slot models.AvailabilitySlot
	err = n.db.WithContext(ctx).First(&slot, "id = ?", b.SlotID).Error
	return user, slot, err
}

func formatWindow(slot models.AvailabilitySlot) string {
	return fmt.Sprintf("%s - %s", slot.StartsAt.Format("Mon 02 Jan 2006 15:04"), slot.EndsAt.Format(time.Kitchen))
}

func (n *EmailNotifier) SendBookingConfirmation(ctx context.Context, b models.Booking) error {
	user, slot, err := n.bookingDetails(ctx, b)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("<h1>Booking Confirmed</h1><p>Hi %s,</p><p>Your session on <b>%s</b> is confirmed.</p>", user.FullName, formatWindow(slot))
	return n.send(ctx, user.FullName, user.Email, "Your Booking is Confirmed!", body)
}

func (n *EmailNotifier) SendBookingCancellation(ctx context.Context, b models.Booking) error {
	user, slot, err := n.bookingDetails(ctx, b)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("<h1>Booking Canceled</h1><p>Hi %s,</p><p>Your session on <b>%s</b> was canceled.</p><p>Reason: %s</p>", user.FullName, formatWindow(slot), b.CanceledReason)
	return n.send(ctx, user.FullName, user.Email, "Your Booking was Canceled", body)
}

func (n *EmailNotifier) SendBookingReschedule(ctx context.Context, oldBooking, newBooking models.Booking) error {
	user, oldSlot, err := n.bookingDetails(ctx, oldBooking)
	if err != nil {
		return err
	}
	var newSlot models.AvailabilitySlot
	if err := n.db.WithContext(ctx).First(&newSlot, "id = ?", newBooking.SlotID).Error; err != nil {
		return err
	}
	body := fmt.Sprintf("<h1>Booking Rescheduled</h1><p>Hi %s,</p><p>Your session moved from %s to <b>%s</b>.</p>", user.FullName, formatWindow(oldSlot), formatWindow(newSlot))
	return n.send(ctx, user.FullName, user.Email, "Your Booking was Rescheduled", body)
}

func (n *EmailNotifier) SendPaymentReceipt(ctx context.Context, p models.Payment) error {
	user, err := n.customer(ctx, p.CustomerID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("<h1>Payment Received</h1><p>Hi %s,</p><p>We received your payment of <b>%s %s</b>.</p><p>Reference: %s</p>",
		user.FullName, formatAmount(p.AmountInCents), p.Currency, p.Reference)
	return n.send(ctx, user.FullName, user.Email, "Payment Receipt", body)
}

func (n *EmailNotifier) SendSubscriptionExpiryReminder(ctx context.Context, s models.Subscription) error {
	user, err := n.customer(ctx, s.CustomerID)
	if err != nil {
		return err
	}
	body := fmt.Sprintf("<h1>Your package is about to expire</h1><p>Hi %s,</p><p>Your package expires on <b>%s</b> with %d session(s) left.</p>",
		user.FullName, s.ExpiresAt.Format("Mon 02 Jan 2006"), s.SessionsRemaining())
	return n.send(ctx, user.FullName, user.Email, "Your Package Expires Soon", body)
}

func formatAmount(cents int64) string {
	return fmt.Sprintf("%d.%02d", cents/100, cents%100)
}
