// internal/errors/errors.go
package appErrors

import (
	"errors"
	"fmt"
)

// Kind identifies why an escrow operation was rejected. The first ten values
// keep the numeric codes clients already know from the on-chain contract.
type Kind int

const (
	InvalidGoalAmount       Kind = 1
	DeadlineInThePast       Kind = 2
	CampaignNotFound        Kind = 3
	CampaignEnded           Kind = 4
	PledgeAmountZero        Kind = 5
	NotTheCreator           Kind = 6
	CampaignStillActive     Kind = 7
	CampaignNotSuccessful   Kind = 8
	CampaignNotFailed       Kind = 9
	PerkTransferFailed      Kind = 10
	NoPledgeToRefund        Kind = 11
	FundsAlreadyClaimed     Kind = 12
	CampaignAlreadyResolved Kind = 13
	AssetMismatch           Kind = 14
	AmountOverflow          Kind = 15
	Unauthorized            Kind = 16
	InsufficientBalance     Kind = 17
)

var kindNames = map[Kind]string{
	InvalidGoalAmount:       "InvalidGoalAmount",
	DeadlineInThePast:       "DeadlineInThePast",
	CampaignNotFound:        "CampaignNotFound",
	CampaignEnded:           "CampaignEnded",
	PledgeAmountZero:        "PledgeAmountZero",
	NotTheCreator:           "NotTheCreator",
	CampaignStillActive:     "CampaignStillActive",
	CampaignNotSuccessful:   "CampaignNotSuccessful",
	CampaignNotFailed:       "CampaignNotFailed",
	PerkTransferFailed:      "PerkTransferFailed",
	NoPledgeToRefund:        "NoPledgeToRefund",
	FundsAlreadyClaimed:     "FundsAlreadyClaimed",
	CampaignAlreadyResolved: "CampaignAlreadyResolved",
	AssetMismatch:           "AssetMismatch",
	AmountOverflow:          "AmountOverflow",
	Unauthorized:            "Unauthorized",
	InsufficientBalance:     "InsufficientBalance",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// kinds raised before a campaign exists or outside any campaign
var campaignless = map[Kind]bool{
	InvalidGoalAmount:   true,
	DeadlineInThePast:   true,
	Unauthorized:        true,
	InsufficientBalance: true,
}

// EscrowError is returned for every business-rule rejection.
type EscrowError struct {
	Kind       Kind
	CampaignID uint64
	Detail     string
	Err        error
}

func (e *EscrowError) Error() string {
	msg := e.Kind.String()
	if !campaignless[e.Kind] {
		msg = fmt.Sprintf("%s (campaign %d)", msg, e.CampaignID)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *EscrowError) Unwrap() error { return e.Err }

// Is lets errors.Is match on kind alone, e.g. errors.Is(err, appErrors.New(CampaignEnded, 0)).
func (e *EscrowError) Is(target error) bool {
	t, ok := target.(*EscrowError)
	return ok && t.Kind == e.Kind
}

// New builds an EscrowError for a campaign.
func New(kind Kind, campaignID uint64) error {
	return &EscrowError{Kind: kind, CampaignID: campaignID}
}

// Newf builds an EscrowError with a formatted detail.
func Newf(kind Kind, campaignID uint64, format string, args ...any) error {
	return &EscrowError{Kind: kind, CampaignID: campaignID, Detail: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind to an underlying cause.
func Wrap(kind Kind, campaignID uint64, err error) error {
	return &EscrowError{Kind: kind, CampaignID: campaignID, Err: err}
}

// Helper constructor
func NewCampaignNotFound(id uint64) error {
	return New(CampaignNotFound, id)
}

// KindOf reports the kind carried by err, if any.
func KindOf(err error) (Kind, bool) {
	var e *EscrowError
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsKind is shorthand for checking a single kind.
func IsKind(err error, kind Kind) bool {
	k, ok := KindOf(err)
	return ok && k == kind
}
