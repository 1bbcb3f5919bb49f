package firestore

import (
	"cmp"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/tinywideclouds/go-fcm-messaging/pkg/dispatch"
)

// FirestoreStore implements dispatch.TokenStore on a Firestore collection
// named after the token table.
type FirestoreStore struct {
	client     *firestore.Client
	collection string
}

func NewFirestoreStore(client *firestore.Client, collection string) *FirestoreStore {
	if collection == "" {
		collection = "fcm_tokens"
	}
	return &FirestoreStore{client: client, collection: collection}
}

// tokenRecord is the document shape; the registration side writes it.
type tokenRecord struct {
	UserID    int64     `firestore:"user_id"`
	FCMToken  string    `firestore:"fcm_token"`
	CreatedAt time.Time `firestore:"created_at"`
}

func (s *FirestoreStore) DeleteByToken(ctx context.Context, token string) (bool, error) {
	_, err := s.tokenRef(token).Delete(ctx, firestore.Exists)
	if status.Code(err) == codes.NotFound {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("firestore delete failed: %w", err)
	}
	return true, nil
}

func (s *FirestoreStore) DeleteTokens(ctx context.Context, tokens []string) (bool, error) {
	if len(tokens) == 0 {
		return true, nil
	}

	bw := s.client.BulkWriter(ctx)
	jobs := make([]*firestore.BulkWriterJob, 0, len(tokens))
	for _, t := range tokens {
		job, err := bw.Delete(s.tokenRef(t), firestore.Exists)
		if err != nil {
			bw.End()
			return false, fmt.Errorf("firestore bulk delete enqueue failed: %w", err)
		}
		jobs = append(jobs, job)
	}
	bw.End()

	removed := 0
	var errs []error
	for _, job := range jobs {
		_, err := job.Results()
		switch {
		case err == nil:
			removed++
		case status.Code(err) == codes.NotFound:
		default:
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return removed > 0, fmt.Errorf("firestore bulk delete failed: %w", errors.Join(errs...))
	}
	return removed > 0, nil
}

func (s *FirestoreStore) TokensForUser(ctx context.Context, userID int64) ([]dispatch.TokenRecord, error) {
	// Ordered in memory to avoid requiring a composite index.
	return s.collect(s.client.Collection(s.collection).Where("user_id", "==", userID).Documents(ctx))
}

func (s *FirestoreStore) AllTokens(ctx context.Context) ([]dispatch.TokenRecord, error) {
	return s.collect(s.client.Collection(s.collection).Documents(ctx))
}

func (s *FirestoreStore) collect(iter *firestore.DocumentIterator) ([]dispatch.TokenRecord, error) {
	defer iter.Stop()

	records := make([]dispatch.TokenRecord, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("firestore iteration failed: %w", err)
		}

		var record tokenRecord
		if err := doc.DataTo(&record); err != nil {
			// Skip corrupt documents rather than failing the whole fan-out.
			continue
		}
		records = append(records, dispatch.TokenRecord{
			UserID:    record.UserID,
			FCMToken:  record.FCMToken,
			CreatedAt: record.CreatedAt,
		})
	}

	slices.SortStableFunc(records, func(a, b dispatch.TokenRecord) int {
		return cmp.Compare(a.CreatedAt.UnixNano(), b.CreatedAt.UnixNano())
	})
	return records, nil
}

// tokenRef: {collection}/{sha256(token)}
func (s *FirestoreStore) tokenRef(token string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(hashToken(token))
}

func hashToken(t string) string {
	sum := sha256.Sum256([]byte(t))
	return hex.EncodeToString(sum[:])
}
