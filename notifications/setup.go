package notifications

import (
	"log"

	config "github.com/anjiri1684/studio_booking/configs"
	"gorm.io/gorm"
)

// FromConfig builds the delivery chain: the log line always, email when SMTP is
// configured and domain events when a broker URL is set. A channel that fails
// to start is skipped with a warning so the API still comes up.
func FromConfig(db *gorm.DB, mail config.MailConfig, broker config.BrokerConfig) (Fanout, func()) {
	fanout := Fanout{LogNotifier{}}
	closers := []func(){}

	if mail.Host != "" {
		email, err := NewEmailNotifier(db, mail)
		if err != nil {
			log.Printf("⚠️ Email notifications disabled: %v", err)
		} else {
			fanout = append(fanout, email)
		}
	}

	if broker.URL != "" {
		publisher, err := NewEventPublisher(broker.URL, broker.Exchange)
		if err != nil {
			log.Printf("⚠️ Domain events disabled: %v", err)
		} else {
			fanout = append(fanout, publisher)
			closers = append(closers, func() { _ = publisher.Close() })
		}
	}

	return fanout, func() {
		for _, c := range closers {
			c()
		}
	}
}
