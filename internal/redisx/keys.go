package redisx

import (
	"fmt"
	"time"
)

const (
	// idem:order:book:{payment_ref} -> "1"
	keyIdemOrderBook = "idem:order:book:%s"
	// dedup:notification:{intent_key} -> "1"
	keyDedupNotification = "dedup:notification:%s"
	// rating:{subject_kind}:{subject_id}:{direction} -> {"average_rating":..,"review_count":..}
	keyRating = "rating:%s:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLDedup       = 48 * time.Hour
	TTLRatingCache = 10 * time.Minute
)

func OrderBookKey(paymentRef string) string {
	return fmt.Sprintf(keyIdemOrderBook, paymentRef)
}

func NotificationDedupKey(intentKey string) string {
	return fmt.Sprintf(keyDedupNotification, intentKey)
}

func RatingKey(kind, subjectID, direction string) string {
	return fmt.Sprintf(keyRating, kind, subjectID, direction)
}
