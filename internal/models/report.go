package models

// ReportRequest is the JSON body of POST /api/reports. Exactly one of Name and
// NameHash is set; a plain name is hashed by the relay and never stored.
type ReportRequest struct {
	CitizenID         uint64   `json:"citizenId" binding:"required"`
	Name              string   `json:"name,omitempty"`
	NameHash          string   `json:"nameHash,omitempty"`
	EncryptedNameIPFS string   `json:"encryptedNameIPFS" binding:"required"`
	CurrentLocation   string   `json:"currentLocation" binding:"required"`
	CrimeLocation     string   `json:"crimeLocation" binding:"required"`
	EvidenceURIs      []string `json:"evidenceURIs" binding:"required,min=1,dive,required"`
	CrimeTime         int64    `json:"crimeTime" binding:"required"`
}

// ReportView is a stored report as returned by GET /api/reports/:id.
type ReportView struct {
	ID                uint64   `json:"id"`
	CitizenID         uint64   `json:"citizenId"`
	NameHash          string   `json:"nameHash"`
	EncryptedNameIPFS string   `json:"encryptedNameIPFS"`
	CurrentLocation   string   `json:"currentLocation"`
	CrimeLocation     string   `json:"crimeLocation"`
	EvidenceURIs      []string `json:"evidenceURIs"`
	CrimeTime         int64    `json:"crimeTime"`
	Status            string   `json:"status"`
	StatusCode        uint8    `json:"statusCode"`
	SubmitterAddress  string   `json:"submitterAddress"`
}

// SubmitResult is the body of a successful POST /api/reports.
type SubmitResult struct {
	Success         bool   `json:"success"`
	TransactionHash string `json:"transactionHash"`
	BlockNumber     uint64 `json:"blockNumber"`
}

// Health is the body of GET /api/health.
type Health struct {
	Status          string `json:"status"`
	ChainID         uint64 `json:"chainId"`
	ContractAddress string `json:"contractAddress"`
}
