package services

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"net/url"
	"reportrelay/internal/chain"
	"reportrelay/internal/metrics"
	"reportrelay/internal/models"
	"reportrelay/internal/utils"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

const (
	// MaxEvidenceURIs bounds the evidence list; every URI is calldata the
	// signer pays for.
	MaxEvidenceURIs = 20
	maxFieldLength  = 512
	maxClockSkew    = 5 * time.Minute
)

// Ledger is the chain surface the relay needs. *chain.Client implements it.
type Ledger interface {
	ChainID(ctx context.Context) (*big.Int, error)
	ContractAddress() common.Address
	Signer() common.Address
	ReportCount(ctx context.Context) (uint64, error)
	SubmitReport(ctx context.Context, r chain.Report) (*chain.Receipt, error)
	GetReport(ctx context.Context, id uint64) (*chain.ReportRecord, error)
}

// ValidationError lists every problem found in a report request.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid report: " + strings.Join(e.Problems, "; ")
}

// ReportService turns HTTP-level requests into contract calls.
type ReportService struct {
	ledger  Ledger
	journal *Journal
	records *utils.Cache[uint64, *chain.ReportRecord]
	metrics *metrics.Metrics
	logger  *zap.Logger
	now     func() time.Time
}

// NewReportService wires the service. journal and records may be nil.
func NewReportService(ledger Ledger, journal *Journal, records *utils.Cache[uint64, *chain.ReportRecord], m *metrics.Metrics, logger *zap.Logger) *ReportService {
	if m == nil {
		m = metrics.New(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ReportService{
		ledger:  ledger,
		journal: journal,
		records: records,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Health reports the network identity and the configured contract address.
func (s *ReportService) Health(ctx context.Context) (*models.Health, error) {
	start := time.Now()
	id, err := s.ledger.ChainID(ctx)
	s.metrics.ChainCall("chainId", start, err)
	if err != nil {
		return nil, err
	}
	return &models.Health{
		Status:          "ok",
		ChainID:         id.Uint64(),
		ContractAddress: s.ledger.ContractAddress().Hex(),
	}, nil
}

// Count returns the on-chain report counter.
func (s *ReportService) Count(ctx context.Context) (uint64, error) {
	start := time.Now()
	n, err := s.ledger.ReportCount(ctx)
	s.metrics.ChainCall(chain.MethodReportCount, start, err)
	return n, err
}

// Get reads a report, serving recent reads from the record cache.
func (s *ReportService) Get(ctx context.Context, id uint64) (*models.ReportView, error) {
	if s.records != nil {
		if rec, ok := s.records.Get(id); ok {
			return viewOf(rec), nil
		}
	}

	start := time.Now()
	rec, err := s.ledger.GetReport(ctx, id)
	s.metrics.ChainCall(chain.MethodGetReport, start, err)
	if err != nil {
		return nil, err
	}
	if s.records != nil {
		s.records.Set(id, rec)
	}
	return viewOf(rec), nil
}

// Submit validates req, writes it to the chain and waits for the receipt.
func (s *ReportService) Submit(ctx context.Context, req models.ReportRequest) (*chain.Receipt, error) {
	report, err := s.BuildReport(req)
	if err != nil {
		s.metrics.Submission("invalid")
		return nil, err
	}

	start := time.Now()
	receipt, err := s.ledger.SubmitReport(ctx, report)
	s.metrics.ChainCall(chain.MethodSubmitReport, start, err)

	entry := &models.Submission{
		CitizenID: report.CitizenID,
		Signer:    s.ledger.Signer().Hex(),
		CreatedAt: s.now(),
	}
	if err != nil {
		kind := chain.Kind(err)
		s.metrics.Submission(outcomeOf(kind))
		s.logger.Warn("report submission failed",
			zap.Uint64("citizen_id", report.CitizenID),
			zap.String("kind", kind),
			zap.Error(err),
		)
		entry.Outcome = models.OutcomeFailed
		entry.ErrorKind = kind
		entry.Error = truncate(err.Error(), 500)
		s.record(entry)
		return nil, err
	}

	s.metrics.Submission(models.OutcomeMined)
	s.logger.Info("report submitted",
		zap.Uint64("citizen_id", report.CitizenID),
		zap.String("tx", receipt.TxHash.Hex()),
		zap.Uint64("block", receipt.BlockNumber),
	)
	entry.Outcome = models.OutcomeMined
	entry.TxHash = receipt.TxHash.Hex()
	entry.BlockNumber = receipt.BlockNumber
	entry.GasUsed = receipt.GasUsed
	s.record(entry)
	return receipt, nil
}

// Submissions pages through the journal.
func (s *ReportService) Submissions(ctx context.Context, limit, offset int) ([]models.Submission, int64, error) {
	if s.journal == nil {
		return []models.Submission{}, 0, nil
	}
	return s.journal.List(ctx, limit, offset)
}

// Submission looks one journal row up by transaction hash.
func (s *ReportService) Submission(ctx context.Context, txHash string) (*models.Submission, error) {
	if s.journal == nil {
		return nil, ErrSubmissionNotFound
	}
	if h, err := utils.ParseHash(txHash); err == nil {
		txHash = h.Hex()
	}
	return s.journal.FindByTx(ctx, txHash)
}

func (s *ReportService) record(entry *models.Submission) {
	if s.journal != nil {
		s.journal.Record(entry)
	}
}

// BuildReport validates req and derives the contract arguments from it.
func (s *ReportService) BuildReport(req models.ReportRequest) (chain.Report, error) {
	var problems []string
	addf := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if req.CitizenID == 0 {
		addf("citizenId is required")
	}

	var nameHash common.Hash
	name := strings.TrimSpace(req.Name)
	switch {
	case name != "" && req.NameHash != "":
		addf("send either name or nameHash, not both")
	case name != "":
		nameHash = utils.NameHash(name)
	case req.NameHash != "":
		h, err := utils.ParseHash(req.NameHash)
		if err != nil {
			addf("nameHash: %v", err)
		} else if h == (common.Hash{}) {
			addf("nameHash must not be zero")
		}
		nameHash = h
	default:
		addf("name or nameHash is required")
	}

	encryptedName := strings.TrimSpace(req.EncryptedNameIPFS)
	if err := checkURI(encryptedName); err != nil {
		addf("encryptedNameIPFS: %v", err)
	}

	currentLocation, err := normalizeLocation(req.CurrentLocation)
	if err != nil {
		addf("currentLocation: %v", err)
	}
	crimeLocation, err := normalizeLocation(req.CrimeLocation)
	if err != nil {
		addf("crimeLocation: %v", err)
	}

	evidence := make([]string, 0, len(req.EvidenceURIs))
	switch {
	case len(req.EvidenceURIs) == 0:
		addf("at least one evidence URI is required")
	case len(req.EvidenceURIs) > MaxEvidenceURIs:
		addf("at most %d evidence URIs are allowed", MaxEvidenceURIs)
	default:
		for i, raw := range req.EvidenceURIs {
			uri := strings.TrimSpace(raw)
			if err := checkURI(uri); err != nil {
				addf("evidenceURIs[%d]: %v", i, err)
				continue
			}
			evidence = append(evidence, uri)
		}
	}

	now := s.now()
	switch {
	case req.CrimeTime <= 0:
		addf("crimeTime must be a positive unix timestamp")
	case time.Unix(req.CrimeTime, 0).After(now.Add(maxClockSkew)):
		addf("crimeTime is in the future")
	}

	if len(problems) > 0 {
		return chain.Report{}, &ValidationError{Problems: problems}
	}

	return chain.Report{
		CitizenID:         req.CitizenID,
		NameHash:          nameHash,
		EncryptedNameIPFS: encryptedName,
		CurrentLocation:   currentLocation,
		CrimeLocation:     crimeLocation,
		EvidenceURIs:      evidence,
		CrimeTime:         req.CrimeTime,
	}, nil
}

func checkURI(s string) error {
	if s == "" {
		return errors.New("is required")
	}
	if len(s) > maxFieldLength {
		return fmt.Errorf("longer than %d characters", maxFieldLength)
	}
	if utils.HasMarkup(s) {
		return errors.New("must not contain markup")
	}
	u, err := url.Parse(s)
	if err != nil || u.Scheme == "" || (u.Host == "" && u.Opaque == "") {
		return fmt.Errorf("%q is not an absolute URI", s)
	}
	return nil
}

func normalizeLocation(s string) (string, error) {
	if utils.HasMarkup(s) {
		return "", errors.New("must not contain markup")
	}
	lat, lng, err := utils.ParseLatLng(s)
	if err != nil {
		return "", err
	}
	return utils.FormatLatLng(lat, lng), nil
}

func viewOf(rec *chain.ReportRecord) *models.ReportView {
	evidence := rec.Report.EvidenceURIs
	if evidence == nil {
		evidence = []string{}
	}
	return &models.ReportView{
		ID:                rec.ID,
		CitizenID:         rec.Report.CitizenID,
		NameHash:          rec.Report.NameHash.Hex(),
		EncryptedNameIPFS: rec.Report.EncryptedNameIPFS,
		CurrentLocation:   rec.Report.CurrentLocation,
		CrimeLocation:     rec.Report.CrimeLocation,
		EvidenceURIs:      evidence,
		CrimeTime:         rec.Report.CrimeTime,
		Status:            rec.Status.String(),
		StatusCode:        uint8(rec.Status),
		SubmitterAddress:  rec.Submitter.Hex(),
	}
}

func outcomeOf(kind string) string {
	switch kind {
	case "chain_rejected":
		return "rejected"
	case "timeout", "connectivity":
		return kind
	default:
		return "internal"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
