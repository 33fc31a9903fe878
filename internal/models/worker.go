package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Worker struct {
	ID         uuid.UUID
	CreatedAt  time.Time
	FullName   string
	Phone      string // private, used for payouts only
	TipID      string // public short code payers use
	PinHash    string
	Occupation string
	Workplace  string
	Balance    decimal.Decimal
}

// Profile fields accepted on registration
type Profile struct {
	FullName   string
	Phone      string
	Pin        string
	Occupation string
	Workplace  string
}

// PublicWorker is what a payer sees when looking up a tip id
type PublicWorker struct {
	FullName   string
	TipID      string
	Occupation string
	Workplace  string
}

func (w Worker) Public() PublicWorker {
	return PublicWorker{
		FullName:   w.FullName,
		TipID:      w.TipID,
		Occupation: w.Occupation,
		Workplace:  w.Workplace,
	}
}
