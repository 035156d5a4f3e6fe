package tokenstore

import (
	"context"
	"fmt"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// tokenDocID is the single document holding the scraping session token.
// grid-front fronts one application session, so one document suffices.
const tokenDocID = "scraping-session"

// FirestoreStore persists the token in a single Firestore document
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

type firestoreTokenDoc struct {
	Token   string    `firestore:"token"`
	SavedAt time.Time `firestore:"saved_at"`
}

// NewFirestoreStore connects to Firestore. An empty database selects the
// project's default database; an empty credentials file falls back to
// application default credentials.
func NewFirestoreStore(ctx context.Context, projectID, database, collection, credentialsFile string) (*FirestoreStore, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	var client *firestore.Client
	var err error
	if database != "" {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, database, opts...)
	} else {
		client, err = firestore.NewClient(ctx, projectID, opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("creating firestore client: %w", err)
	}

	return &FirestoreStore{
		client:     client,
		collection: collection,
	}, nil
}

// Load reads the persisted token; a missing document maps to ErrNotFound
func (f *FirestoreStore) Load(ctx context.Context) (string, error) {
	doc, err := f.client.Collection(f.collection).Doc(tokenDocID).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("loading token document: %w", err)
	}

	var record firestoreTokenDoc
	if err := doc.DataTo(&record); err != nil {
		return "", fmt.Errorf("decoding token document: %w", err)
	}
	if record.Token == "" {
		return "", ErrNotFound
	}
	return record.Token, nil
}

// Save writes the token document
func (f *FirestoreStore) Save(ctx context.Context, token string) error {
	_, err := f.client.Collection(f.collection).Doc(tokenDocID).Set(ctx, firestoreTokenDoc{
		Token:   token,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("saving token document: %w", err)
	}
	return nil
}

// Clear deletes the token document; a missing document is fine
func (f *FirestoreStore) Clear(ctx context.Context) error {
	_, err := f.client.Collection(f.collection).Doc(tokenDocID).Delete(ctx)
	if err != nil && status.Code(err) != codes.NotFound {
		return fmt.Errorf("clearing token document: %w", err)
	}
	return nil
}

// Close releases the Firestore client
func (f *FirestoreStore) Close() error {
	return f.client.Close()
}
