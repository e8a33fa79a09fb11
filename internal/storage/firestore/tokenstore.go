package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
)

const (
	usersCollection  = "users"
	tokensCollection = "deviceTokens"
)

// FirestoreStore implements dispatch.TokenStore on Cloud Firestore.
// Tokens live at users/{userID}/deviceTokens/{token}: the document ID is the
// token itself, the document body is owned by the client that registered it.
type FirestoreStore struct {
	client *firestore.Client
}

func NewFirestoreStore(client *firestore.Client) *FirestoreStore {
	return &FirestoreStore{client: client}
}

// Fetch reads every token document for the user, in document ID order.
func (s *FirestoreStore) Fetch(ctx context.Context, userID string) ([]string, error) {
	iter := s.tokensCollection(userID).Documents(ctx)
	defer iter.Stop()

	tokens := make([]string, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed for user %s: %w", userID, err)
		}
		tokens = append(tokens, doc.Ref.ID)
	}

	return tokens, nil
}

func (s *FirestoreStore) Delete(ctx context.Context, userID, token string) error {
	if _, err := s.tokenRef(userID, token).Delete(ctx); err != nil {
		return fmt.Errorf("failed to delete device token for user %s: %w", userID, err)
	}
	return nil
}

// tokenRef: users/{userID}/deviceTokens/{token}
func (s *FirestoreStore) tokenRef(userID, token string) *firestore.DocumentRef {
	return s.tokensCollection(userID).Doc(token)
}

func (s *FirestoreStore) tokensCollection(userID string) *firestore.CollectionRef {
	return s.client.Collection(usersCollection).Doc(userID).Collection(tokensCollection)
}
