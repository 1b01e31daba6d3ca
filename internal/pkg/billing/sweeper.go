package billing

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2/log"
)

// FailStaleDraftInvoices fails drafts older than ttl. A draft that old means
// the process stopped between the local insert and the gateway calls.
func (s *Service) FailStaleDraftInvoices(ctx context.Context, ttl time.Duration) (int64, error) {
	cutoff := s.now().Add(-ttl)
	n, err := s.repos.Invoice.FailStaleDrafts(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		log.Warnf("[Sweeper] failed %d draft invoice(s) created before %s", n, cutoff.Format(time.RFC3339))
	}
	return n, nil
}
