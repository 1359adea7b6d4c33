package chain

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ReportStatus is the on-chain lifecycle state of a report. The contract owns
// transitions; the relay only reads it.
type ReportStatus uint8

const (
	StatusSubmitted ReportStatus = iota
	StatusUnderReview
	StatusVerified
	StatusRejected
	StatusClosed
)

var statusNames = map[ReportStatus]string{
	StatusSubmitted:   "submitted",
	StatusUnderReview: "under_review",
	StatusVerified:    "verified",
	StatusRejected:    "rejected",
	StatusClosed:      "closed",
}

func (s ReportStatus) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

// Report holds the fields passed to submitReport, in contract order.
type Report struct {
	CitizenID         uint64
	NameHash          common.Hash
	EncryptedNameIPFS string
	CurrentLocation   string
	CrimeLocation     string
	EvidenceURIs      []string
	CrimeTime         int64
}

func (r Report) args() []interface{} {
	evidence := r.EvidenceURIs
	if evidence == nil {
		evidence = []string{}
	}
	return []interface{}{
		new(big.Int).SetUint64(r.CitizenID),
		[32]byte(r.NameHash),
		r.EncryptedNameIPFS,
		r.CurrentLocation,
		r.CrimeLocation,
		evidence,
		big.NewInt(r.CrimeTime),
	}
}

// ReportRecord is a report as stored on-chain.
type ReportRecord struct {
	ID        uint64
	Report    Report
	Status    ReportStatus
	Submitter common.Address
}

// Receipt confirms a mined submission.
type Receipt struct {
	TxHash      common.Hash
	BlockNumber uint64
	GasUsed     uint64
}
