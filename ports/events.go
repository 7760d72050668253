package ports

import "context"

// EventPublisher publishes events to notify other instances
type EventPublisher interface {
	PublishLogout(ctx context.Context, subject string, sessionID string) error
	PublishWalletLinked(ctx context.Context, address string, identityID string) error
	PublishPasswordReset(ctx context.Context, email string) error
}

// OtpSender hands a one-time code to the external messaging collaborator
type OtpSender interface {
	DeliverOtp(ctx context.Context, phone string, code string) error
}
