package collector

import (
	"context"

	"xscraper/pkg/models"
	"xscraper/pkg/twitter"
)

// Source is the paginated collection capability the primary collector
// consumes. *twitter.Client satisfies it; tests drive the state machine with
// a synthetic finite source.
type Source interface {
	// FetchUserInfo resolves an account to its user id and expected total.
	FetchUserInfo(ctx context.Context, username string) (*twitter.UserInfo, error)

	// FetchUserTimeline returns one ordered batch of raw timeline entries.
	FetchUserTimeline(ctx context.Context, userID, cursor string, batch int) (*twitter.Timeline, error)

	// SearchReplies returns one ordered batch of the account's replies.
	SearchReplies(ctx context.Context, account, cursor string, batch int) (*twitter.Timeline, error)
}

// Authenticator is the login surface of the source. Session teardown stays
// out of the contract; a run never invalidates the operator's credentials.
type Authenticator interface {
	VerifyCredentials(ctx context.Context) (*twitter.AccountIdentity, error)
}

// Session is the interactive abstraction the fallback collector drives. The
// canonical implementation is a controlled browser session, but the contract
// is source-agnostic.
type Session interface {
	// Authenticate logs the session in.
	Authenticate(ctx context.Context) error

	// Open navigates to a live query view for the account.
	Open(ctx context.Context, account string) error

	// Reveal incrementally loads more results into the view.
	Reveal(ctx context.Context) error

	// Extract returns the records currently visible in the view.
	Extract(ctx context.Context) ([]models.Record, error)

	// Logout releases the session.
	Logout(ctx context.Context) error
}
