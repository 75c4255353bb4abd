package services

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/academyhq/tournament-engine/pkg/config"
)

// Notifier sends out-of-band messages to participants (podium SMS after a
// reward distribution). Delivery is best effort and never part of the
// finalization transaction.
type Notifier interface {
	SendMessage(phoneNumber, message string) error
}

// MockNotifier logs instead of sending; the development default.
type MockNotifier struct{}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (n *MockNotifier) SendMessage(phoneNumber, message string) error {
	logrus.Infof("MOCK SMS to %s: %s", phoneNumber, message)
	return nil
}

// TwilioNotifier sends real SMS through Twilio, guarded by a circuit breaker
// so a provider outage cannot pile up request threads.
type TwilioNotifier struct {
	client     *twilio.RestClient
	fromNumber string
	breaker    *gobreaker.CircuitBreaker
}

func NewTwilioNotifier(accountSID, authToken, fromNumber string, failureThreshold int) *TwilioNotifier {
	client := twilio.NewRestClientWithParams(twilio.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	cb := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "twilio-sms",
		Timeout: 60 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= uint32(failureThreshold)
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logrus.Warnf("Circuit breaker %s: %s -> %s", name, from, to)
		},
	})
	return &TwilioNotifier{client: client, fromNumber: fromNumber, breaker: cb}
}

func (n *TwilioNotifier) SendMessage(phoneNumber, message string) error {
	_, err := n.breaker.Execute(func() (interface{}, error) {
		params := &twilioApi.CreateMessageParams{}
		params.SetTo(phoneNumber)
		params.SetFrom(n.fromNumber)
		params.SetBody(message)
		return n.client.Api.CreateMessage(params)
	})
	if err != nil {
		return fmt.Errorf("failed to send SMS: %w", err)
	}
	return nil
}

// NewNotifier picks the provider from configuration.
func NewNotifier(cfg *config.Config) Notifier {
	switch cfg.SMSProvider {
	case "twilio":
		if cfg.TwilioAccountSID == "" || cfg.TwilioAuthToken == "" {
			logrus.Warn("Twilio credentials missing, falling back to mock notifier")
			return NewMockNotifier()
		}
		return NewTwilioNotifier(cfg.TwilioAccountSID, cfg.TwilioAuthToken,
			cfg.TwilioFromNumber, cfg.CircuitBreakerThreshold)
	default:
		return NewMockNotifier()
	}
}

// PodiumMessage formats the congratulation text for a finisher.
func PodiumMessage(tournamentName string, rank int, credits int) string {
	return fmt.Sprintf("Congratulations! You finished #%d in %s and earned %d credits.",
		rank, tournamentName, credits)
}
