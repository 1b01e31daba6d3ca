package billing

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/alumup/athletesapp-sub001/internal/pkg/gateway"
)

// Obligation keys name what a payment settles. They back both the
// distributed lock and the unique payments.obligation_key column.

func singleObligationKey(accountID, feeID, personID, profileID, rsvpID uint) string {
	return fmt.Sprintf("single:%d:%d:%d:%d:%d", accountID, feeID, personID, profileID, rsvpID)
}

// multiObligationKey hashes the participant list to stay within the column
// width regardless of how many RSVPs a charge covers.
func multiObligationKey(accountID, feeID, profileID, eventID uint, rsvpIDs []uint) string {
	sum := sha256.Sum256([]byte(gateway.EncodeIDs(rsvpIDs)))
	return fmt.Sprintf("multi:%d:%d:%d:%d:%s", accountID, feeID, profileID, eventID, hex.EncodeToString(sum[:]))
}

func paymentIdempotencyKey(paymentID uint) string {
	return fmt.Sprintf("payment-%d", paymentID)
}

func invoiceIdempotencyKey(invoiceID uint) string {
	return fmt.Sprintf("invoice-%d", invoiceID)
}
