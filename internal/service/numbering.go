package service

import (
	"fmt"
	"time"

	"stockledger/internal/repository"

	"gorm.io/gorm"
)

// Reference number prefixes, scoped per movement kind.
const (
	PrefixReceipt     = "RCT"
	PrefixIssue       = "ISS"
	PrefixTransfer    = "TRF"
	PrefixAdjustment  = "ADJ"
	PrefixFulfillment = "RSF"
	PrefixReservation = "RSV"
)

// NumberingService generates collision-free, human-readable reference numbers
// of the form {PREFIX}-{YEAR}-{NNNNNN}. The sequence is strictly increasing
// per (prefix, year); uniqueness is additionally enforced by the unique index
// on the reference column, and a violation there is treated as a transient
// conflict by the retry wrapper around the whole operation.
type NumberingService interface {
	NextTx(tx *gorm.DB, prefix string) (string, error)
}

type numberingService struct {
	sequences repository.SequenceRepository
	now       func() time.Time
}

func NewNumberingService(sequences repository.SequenceRepository) NumberingService {
	return &numberingService{sequences: sequences, now: time.Now}
}

func (s *numberingService) NextTx(tx *gorm.DB, prefix string) (string, error) {
	year := s.now().UTC().Year()
	seq, err := s.sequences.NextTx(tx, prefix, year)
	if err != nil {
		return "", fmt.Errorf("numbering: next %s/%d: %w", prefix, year, err)
	}
	return fmt.Sprintf("%s-%d-%06d", prefix, year, seq), nil
}
