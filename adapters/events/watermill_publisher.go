package events

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"
	"github.com/layer-3/walletauth/ports"
)

const (
	TopicLogout        = "walletauth.logout"
	TopicWalletLinked  = "walletauth.linked"
	TopicPasswordReset = "walletauth.password_reset"
	TopicOtpDelivery   = "walletauth.otp.delivery"
)

// LogoutEvent is emitted when a session is revoked
type LogoutEvent struct {
	Subject string `json:"subject"`
	TokenID string `json:"tokenId"`
}

// WalletLinkedEvent is emitted when a wallet joins a federated identity
type WalletLinkedEvent struct {
	Address    string `json:"address"`
	IdentityID string `json:"identityId"`
}

// PasswordResetEvent is emitted after a password was replaced through OTP
type PasswordResetEvent struct {
	Email string `json:"email"`
}

// OtpDelivery is the work item picked up by the SMS delivery worker
type OtpDelivery struct {
	Phone string `json:"phone"`
	Code  string `json:"code"`
}

var (
	_ ports.EventPublisher = (*WatermillPublisher)(nil)
	_ ports.OtpSender      = (*WatermillPublisher)(nil)
)

// WatermillPublisher implements the EventPublisher and OtpSender interfaces using Watermill
type WatermillPublisher struct {
	publisher message.Publisher
}

// NewWatermillPublisher creates a new Watermill publisher
func NewWatermillPublisher(publisher message.Publisher) *WatermillPublisher {
	return &WatermillPublisher{publisher: publisher}
}

// PublishLogout publishes a logout event
func (p *WatermillPublisher) PublishLogout(ctx context.Context, subject string, tokenID string) error {
	return p.publish(ctx, TopicLogout, LogoutEvent{Subject: subject, TokenID: tokenID})
}

// PublishWalletLinked publishes a wallet linked event
func (p *WatermillPublisher) PublishWalletLinked(ctx context.Context, address, identityID string) error {
	return p.publish(ctx, TopicWalletLinked, WalletLinkedEvent{Address: address, IdentityID: identityID})
}

// PublishPasswordReset publishes a password reset event
func (p *WatermillPublisher) PublishPasswordReset(ctx context.Context, email string) error {
	return p.publish(ctx, TopicPasswordReset, PasswordResetEvent{Email: email})
}

// DeliverOtp hands the code to the delivery worker
func (p *WatermillPublisher) DeliverOtp(ctx context.Context, phone, code string) error {
	return p.publish(ctx, TopicOtpDelivery, OtpDelivery{Phone: phone, Code: code})
}

// Close closes the underlying publisher
func (p *WatermillPublisher) Close() error {
	return p.publisher.Close()
}

func (p *WatermillPublisher) publish(ctx context.Context, topic string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.SetContext(ctx)

	if err := p.publisher.Publish(topic, msg); err != nil {
		return fmt.Errorf("failed to publish event to %s: %w", topic, err)
	}

	return nil
}
